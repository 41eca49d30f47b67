package monthly

import "errors"

var (
	ErrInvalidMonthKey      = errors.New("invalid month key")
	ErrInvalidSubject       = errors.New("subject id is required")
	ErrSubjectNotFound      = errors.New("subject not found")
	ErrMonthLocked          = errors.New("month locked")
	ErrInvalidTransition    = errors.New("invalid month status transition")
	ErrUnlockReasonRequired = errors.New("unlock reason is required")
	ErrResultNotFound       = errors.New("monthly result not found")
)
