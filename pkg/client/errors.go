package client

import (
	"fmt"

	"github.com/bookrel/backend/pkg/common"
)

// APIError is a typed error reported by the service. It matches the
// sentinel of its kind with errors.Is, so callers handle remote and local
// failures the same way.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.Kind {
	case "InvalidWindowError":
		return target == common.ErrInvalidWindow
	case "EmptyInputError":
		return target == common.ErrEmptyInput
	case "FetchError":
		return target == common.ErrFetch
	case "MergeConflictError":
		return target == common.ErrMergeConflict
	case "StorageError":
		return target == common.ErrStorage
	}
	return false
}
