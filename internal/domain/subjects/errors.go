package subjects

import "errors"

var (
	ErrNotFound       = errors.New("subject not found")
	ErrDuplicateEmail = errors.New("subject email already exists")
	ErrInvalidStatus  = errors.New("invalid subject status")
	ErrInvalidKind    = errors.New("invalid subject kind")
)
