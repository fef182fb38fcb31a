package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no parser can classify a file.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrSchemaInference marks a failed or unusable inferred mapping. Callers
	// fall back to heuristics; it never aborts an ingest.
	ErrSchemaInference = errors.New("schema inference failed")

	// ErrDuplicateContent reports that an ingest found its content already
	// stored. It is an outcome, not a pipeline failure.
	ErrDuplicateContent = errors.New("duplicate content")
)

// MalformedRowError describes a single row that could not be parsed.
type MalformedRowError struct {
	Row int
	Err error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// TransientError wraps a failure from an external service that may succeed
// on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
