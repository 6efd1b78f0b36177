package illustrate

import "errors"

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("illustrate: invalid configuration")

	// ErrNoCandidates is returned when curation runs out of usable image
	// candidates for a slot.
	ErrNoCandidates = errors.New("illustrate: no usable image candidates")

	// ErrVisionNotSupported is returned when the configured vision provider
	// cannot accept image input.
	ErrVisionNotSupported = errors.New("illustrate: configured provider does not support image input")
)
