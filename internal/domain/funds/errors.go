package funds

import "errors"

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrInvalidAmount   = errors.New("adjustment amount must be non-zero")
	ErrNoteRequired    = errors.New("adjustment note is required")
)
