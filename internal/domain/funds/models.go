package funds

import "time"

const (
	KindFine       = "fine"
	KindGift       = "gift"
	KindAdjustment = "adjustment"
)

// Entry is one signed ledger line. Fines are negative, gifts positive.
type Entry struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subjectId"`
	MonthKey  string     `json:"monthKey,omitempty"`
	Kind      string     `json:"kind"`
	Amount    float64    `json:"amount"`
	Note      string     `json:"note,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	VoidedAt  *time.Time `json:"voidedAt,omitempty"`
}

type Balance struct {
	SubjectID  string  `json:"subjectId"`
	Fines      float64 `json:"fines"`
	Gifts      float64 `json:"gifts"`
	Adjustment float64 `json:"adjustment"`
	Balance    float64 `json:"balance"`
}

type Adjustment struct {
	SubjectID string
	Amount    float64
	Note      string
}
