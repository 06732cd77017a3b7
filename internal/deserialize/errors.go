package deserialize

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrMissingRequiredField = errors.New("missing required field")
)

// TypeMismatchError reports a JSON value incompatible with the declared
// type of a field.
type TypeMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %v: expected %s, got %s", e.Path, ErrTypeMismatch, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// MissingFieldError reports a null or absent non-nullable field.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, ErrMissingRequiredField)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }
