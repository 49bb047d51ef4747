package common

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below matches exactly one of them with
// errors.Is, so callers can branch on the kind without a type assertion.
var (
	ErrInvalidWindow = errors.New("invalid window")
	ErrEmptyInput    = errors.New("empty input")
	ErrFetch         = errors.New("fetch failed")
	ErrMergeConflict = errors.New("merge conflict")
	ErrStorage       = errors.New("storage failure")
	ErrTransport     = errors.New("transport failure")
)

// InvalidWindowError is returned for malformed window input: a bad
// totalChapters, a NaN progress, inverted bounds or a bad book id.
type InvalidWindowError struct {
	Field  string
	Reason string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window: %s %s", e.Field, e.Reason)
}

func (e *InvalidWindowError) Is(target error) bool { return target == ErrInvalidWindow }

// EmptyInputError is returned when ingestion input is blank after trimming.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s is blank", e.Source)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// FetchError is returned when a source URL cannot be fetched or does not
// return a text payload.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// MergeConflictError is returned when incoming edges carry malformed
// chapter provenance. The whole merge is rejected.
type MergeConflictError struct {
	Src    string
	Dst    string
	Type   string
	Reason string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: edge %s -[%s]-> %s: %s", e.Src, e.Type, e.Dst, e.Reason)
}

func (e *MergeConflictError) Is(target error) bool { return target == ErrMergeConflict }

// StorageError wraps failures of a persistent GraphStore backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// TransportError wraps failures at the network boundary between a client
// and the service.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Kind returns the wire name of an error's kind, as used in JSON error
// bodies. Unknown errors map to "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWindow):
		return "InvalidWindowError"
	case errors.Is(err, ErrEmptyInput):
		return "EmptyInputError"
	case errors.Is(err, ErrFetch):
		return "FetchError"
	case errors.Is(err, ErrMergeConflict):
		return "MergeConflictError"
	case errors.Is(err, ErrStorage):
		return "StorageError"
	case errors.Is(err, ErrTransport):
		return "TransportError"
	default:
		return "internal"
	}
}
