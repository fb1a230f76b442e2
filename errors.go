package zipstream

import (
	"errors"
	"fmt"

	"github.com/meigma/zipstream/internal/sizing"
)

var (
	// ErrUnsupportedContent is returned by AddFile when the content matches
	// none of the recognized shapes.
	ErrUnsupportedContent = errors.New("zipstream: unsupported content type")

	// ErrInvalidName is returned when an entry name is empty or too long.
	ErrInvalidName = errors.New("zipstream: invalid entry name")

	// ErrInvalidSize is returned when a streamable source declares a negative size.
	ErrInvalidSize = errors.New("zipstream: invalid content size")

	// ErrGenerationActive is returned when the archive is modified or
	// generated while another generation is in progress.
	ErrGenerationActive = errors.New("zipstream: generation in progress")

	// ErrAlreadyConsumed is yielded when a generated sequence is iterated again.
	ErrAlreadyConsumed = errors.New("zipstream: sequence already consumed")

	// ErrAborted is returned when the consumer stopped before the archive was complete.
	ErrAborted = errors.New("zipstream: generation aborted by consumer")

	// ErrSourceRead matches every SourceReadError via errors.Is.
	ErrSourceRead = errors.New("zipstream: source read failed")

	// ErrSizeMismatch is wrapped by SourceReadError when a source yields a
	// different number of bytes than it declared.
	ErrSizeMismatch = errors.New("zipstream: source size mismatch")

	// ErrSizeOverflow is returned when the archive grows past 64-bit offsets.
	ErrSizeOverflow = sizing.ErrOverflow
)

// SourceReadError reports a streamable source that failed to yield its bytes.
type SourceReadError struct {
	// Name is the entry whose source failed.
	Name string

	// Op is "checksum" for the checksum pass or "read" for the content pass.
	Op string

	// Err is the underlying failure.
	Err error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("zipstream: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSourceRead.
func (e *SourceReadError) Is(target error) bool {
	return target == ErrSourceRead
}
