package metacluster

import (
	"fmt"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/thebtf/prism/internal/errdefs"
)

// ResolveLabel maps a generated label onto the round's candidate vocabulary.
// An exact match is accepted outright. Otherwise the closest candidate by
// edit-distance similarity wins, provided its ratio is at least 90%; the
// resolved candidate, not the raw proposal, is returned. Anything below the
// threshold is a validation failure, which keeps generated labels from
// drifting outside the vocabulary proposed earlier in the same round.
func ResolveLabel(proposed string, candidates []string) (string, error) {
	for _, candidate := range candidates {
		if candidate == proposed {
			return candidate, nil
		}
	}

	best := ""
	found := false
	bestDist, bestLen := 0, 0
	for _, candidate := range candidates {
		dist := levenshtein.Distance(proposed, candidate, nil)
		maxLen := utf8.RuneCountInString(proposed)
		if n := utf8.RuneCountInString(candidate); n > maxLen {
			maxLen = n
		}
		if maxLen == 0 {
			continue
		}
		// ratio = 1 - dist/maxLen >= 0.9, kept in integers to avoid float
		// boundary surprises at exactly 90%.
		if 10*dist > maxLen {
			continue
		}
		if !found || dist*bestLen < bestDist*maxLen {
			best = candidate
			bestDist, bestLen = dist, maxLen
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("label %q matches no candidate at >=90%% similarity: %w", proposed, errdefs.ErrValidation)
	}
	return best, nil
}
