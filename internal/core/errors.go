package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrNameTooLong        = errors.New("name too long (max 80 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrUnknownCategory    = errors.New("category does not exist or is not visible")
	ErrDuplicateName      = errors.New("a category with this name already exists")
	ErrReservedName       = errors.New(`"Outros" is reserved for the fallback category`)
	ErrNotFound           = errors.New("not found")
	ErrProtected          = errors.New("the fallback category cannot be deleted or renamed")
	ErrNoOwner            = errors.New("missing user identity")
)

// ValidationError ties a domain error to the input field that caused it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FieldError wraps err as a ValidationError on field.
func FieldError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
