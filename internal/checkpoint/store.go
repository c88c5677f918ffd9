// Package checkpoint persists one typed record list per pipeline stage as
// newline-delimited JSON. A stage whose checkpoint exists is skipped entirely
// on the next run, which makes the pipeline idempotent and resumable.
package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/prism/internal/errdefs"
)

// Stage checkpoint filenames inside the checkpoint directory. The explorer
// service reads the same files, so the names are part of the on-disk format.
const (
	ConversationsFile  = "conversations.jsonl"
	SummariesFile      = "summaries.jsonl"
	ClustersFile       = "clusters.jsonl"
	MetaClustersFile   = "meta_clusters.jsonl"
	DimensionalityFile = "dimensionality.jsonl"
)

// maxLineSize bounds a single checkpoint record. Summaries are short but
// cluster records carry every member chat id.
const maxLineSize = 16 * 1024 * 1024

// Store reads and writes stage checkpoints under a single directory.
type Store struct {
	dir      string
	disabled bool
}

// Open prepares a checkpoint directory, creating it if absent. With override
// set, any existing directory is removed and recreated before use.
func Open(dir string, override bool) (*Store, error) {
	if override {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("clear checkpoint dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Disabled returns a store that never loads or saves anything. Every stage
// recomputes from scratch.
func Disabled() *Store {
	return &Store{disabled: true}
}

// Dir returns the checkpoint directory path.
func (s *Store) Dir() string { return s.dir }

// Enabled reports whether checkpointing is active.
func (s *Store) Enabled() bool { return !s.disabled }

// Path returns the absolute path of a stage checkpoint file.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Load reads every record from a stage checkpoint. It returns nil with no
// error when the store is disabled or the file does not exist. An existing
// but empty file also loads as nil, so callers treat it as a miss and
// recompute the stage; no stage legitimately checkpoints an empty output.
// A line that fails to decode is fatal; there is no silent skip of bad
// records.
func Load[T any](s *Store, name string) ([]T, error) {
	if s.disabled {
		return nil, nil
	}

	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint %s: %w", name, err)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s line %d: %v: %w", name, line, err, errdefs.ErrValidation)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
	}

	log.Info().Str("checkpoint", name).Int("records", len(items)).Msg("Loaded checkpoint")
	return items, nil
}

// Save writes the full record list to a stage checkpoint, replacing any
// previous contents. The write goes to a temp file in the same directory and
// is renamed into place so a crash never leaves a partial checkpoint behind.
func Save[T any](s *Store, name string, items []T) error {
	if s.disabled {
		return nil
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encode checkpoint %s record: %w", name, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			return fmt.Errorf("write checkpoint %s: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush checkpoint %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", name, err)
	}

	log.Debug().Str("checkpoint", name).Int("records", len(items)).Msg("Saved checkpoint")
	return nil
}
