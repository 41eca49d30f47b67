package subjects

import "time"

const (
	KindEmployee = "employee"
	KindAdmin    = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Subject is a person evaluated by weekly KPI marks.
type Subject struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId,omitempty" db:"user_id"`
	FullName  string    `json:"fullName" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Kind      string    `json:"kind" db:"kind"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Filter narrows a listing. Query matches name or email, case-insensitively.
type Filter struct {
	Status string
	Kind   string
	Query  string
}
