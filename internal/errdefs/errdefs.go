// Package errdefs defines the error taxonomy shared across the pipeline.
//
// All three classes are fatal to the run that raises them. Resumability is
// the retry mechanism: a rerun re-enters at the first stage without a valid
// checkpoint.
package errdefs

import "errors"

var (
	// ErrValidation marks data that fails a structural check: a generated
	// label outside the candidate vocabulary, or a checkpoint line that
	// cannot be decoded.
	ErrValidation = errors.New("validation failed")

	// ErrExternalCall marks a failed collaborator call (embedding, labeling,
	// reduction). The enclosing concurrent batch is cancelled; there is no
	// retry at this layer.
	ErrExternalCall = errors.New("external call failed")

	// ErrConfiguration marks invalid setup detected at runtime, such as two
	// metadata extractors producing the same property name.
	ErrConfiguration = errors.New("invalid configuration")
)

// External wraps err so that errors.Is reports ErrExternalCall while the
// original cause stays inspectable.
func External(err error) error {
	return errors.Join(ErrExternalCall, err)
}

// Validation wraps err so that errors.Is reports ErrValidation.
func Validation(err error) error {
	return errors.Join(ErrValidation, err)
}

// Configuration wraps err so that errors.Is reports ErrConfiguration.
func Configuration(err error) error {
	return errors.Join(ErrConfiguration, err)
}
