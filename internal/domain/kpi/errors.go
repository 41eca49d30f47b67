package kpi

import "errors"

var (
	ErrInvalidWeekKey     = errors.New("invalid week key")
	ErrInvalidMarks       = errors.New("invalid marks")
	ErrUnknownCriterion   = errors.New("unknown kpi criterion")
	ErrSubmissionNotFound = errors.New("mark submission not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrMonthLocked        = errors.New("month locked")
)
