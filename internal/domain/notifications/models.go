package notifications

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        string     `json:"id" db:"id"`
	Type      string     `json:"type" db:"type"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// ListFilter narrows an inbox listing.
type ListFilter struct {
	UnreadOnly bool
}

// Settings control whether notices are mirrored by email and from which
// address. A tenant without a row has email off.
type Settings struct {
	EmailEnabled bool       `json:"emailEnabled" db:"email_notifications_enabled"`
	EmailFrom    string     `json:"emailFrom" db:"email_from"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Delivery reports where a result notification went.
type Delivery struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Emailed bool   `json:"emailed"`
	InApp   bool   `json:"inApp"`
}
