package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrInvalidReference is returned when a reference string is malformed
	// or lacks the tag needed to publish.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrEmptyArchive is returned when the archive stream produced no bytes.
	ErrEmptyArchive = errors.New("registry: empty archive")
)
