package recipe

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed means the record store could not be read. It is distinct
	// from an empty result.
	ErrFetchFailed = errors.New("recipe: fetch failed")
	// ErrValidation means a required field is missing or invalid.
	ErrValidation = errors.New("recipe: validation failed")
	// ErrNotFound means no recipe exists with the given identity.
	ErrNotFound = errors.New("recipe: not found")
	// ErrNotConfirmed is returned when a delete is issued without confirmation.
	ErrNotConfirmed = errors.New("recipe: delete not confirmed")
	// ErrIndexOutOfRange is returned by the editor for a bad row position.
	ErrIndexOutOfRange = errors.New("recipe: step index out of range")
	// ErrUnauthorized means no operator is signed in.
	ErrUnauthorized = errors.New("recipe: operator not authenticated")
	// ErrForbidden means the operator lacks the capability for the operation.
	ErrForbidden = errors.New("recipe: operation not permitted")
)

// Save phases reported by PartialSaveError.
const (
	PhaseDeleteSteps  = "delete_steps"
	PhaseInsertSteps  = "insert_steps"
	PhaseReplaceSteps = "replace_steps"
)

// PartialSaveError reports that the recipe row was written but the step
// phase failed afterwards. Nothing is rolled back: the recipe may have zero
// or stale steps until the operator saves again.
type PartialSaveError struct {
	RecipeID int64
	Phase    string
	Err      error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("recipe %d saved but %s failed: %v", e.RecipeID, e.Phase, e.Err)
}

func (e *PartialSaveError) Unwrap() error {
	return e.Err
}
