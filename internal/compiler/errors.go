package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrReservedVariable     = errors.New("variable name is reserved for pagination")
	ErrInvalidVariableType  = errors.New("invalid variable type")
	ErrConflictingVariable  = errors.New("variable declared twice with different types")
	ErrConflictingSelection = errors.New("response key selected twice with different fields or arguments")
	ErrUnpageableConnection = errors.New("connection owner cannot be fetched by id")
	ErrInvalidSelection     = errors.New("invalid selection")
	ErrInvalidArgument      = errors.New("unsupported argument value")
)

// CompilationError reports a composition tree that cannot be compiled. Path
// is the composition path of the offending node.
type CompilationError struct {
	Path string
	Err  error
}

func (e *CompilationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("compile: %v", e.Err)
	}
	return fmt.Sprintf("compile %s: %v", e.Path, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

func compileErr(path string, err error) error {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return err
	}
	return &CompilationError{Path: path, Err: err}
}
