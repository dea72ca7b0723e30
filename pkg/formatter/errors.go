package formatter

import "errors"

// Construction-time errors. All are fail-fast: the offending call leaves the
// builder exactly as it was.
var (
	// ErrInvalidCaptureName means a capture name is not a valid identifier.
	ErrInvalidCaptureName = errors.New("invalid capture name")

	// ErrDuplicateCaptureName means a capture name was already declared on
	// this builder.
	ErrDuplicateCaptureName = errors.New("duplicate capture name")

	// ErrUnresolvedPlaceholder means a ${name} reference does not match any
	// previously declared fragment.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrUnterminatedPlaceholder means a ${ was opened but never closed.
	ErrUnterminatedPlaceholder = errors.New("unterminated placeholder")

	// ErrEmptyTemplate means Build or Grammar was called on a builder with
	// no fragments.
	ErrEmptyTemplate = errors.New("empty template: nothing to format")
)
