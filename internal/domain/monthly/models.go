package monthly

import "time"

const (
	TierBonus        = "BONUS"
	TierAppreciation = "APPRECIATION"
	TierImprovement  = "IMPROVEMENT"
	TierFine         = "FINE"
	TierNoData       = "NO_DATA"

	StatusOpen   = "OPEN"
	StatusLocked = "LOCKED"

	ActionGift     = "gift"
	ActionCoaching = "coaching"
	ActionFine     = "fine"
	ActionNone     = "none"

	JobMonthlyCompute = "monthly_compute"
)

// Tiers lists every tier from best to worst.
var Tiers = []string{TierBonus, TierAppreciation, TierImprovement, TierFine, TierNoData}

// MonthlyResult is the computed outcome for one subject and month.
// MonthlyScore is nil when no weekly score was recorded.
type MonthlyResult struct {
	SubjectID          string   `json:"subjectId"`
	MonthKey           string   `json:"monthKey"`
	MonthlyScore       *float64 `json:"monthlyScore"`
	Tier               string   `json:"tier"`
	ActionType         string   `json:"actionType"`
	BaseFine           float64  `json:"baseFine"`
	FinalFine          float64  `json:"finalFine"`
	GiftAmount         *float64 `json:"giftAmount"`
	WeeksCountUsed     int      `json:"weeksCountUsed"`
	ExpectedWeeksCount int      `json:"expectedWeeksCount"`
	IsCompleteMonth    bool     `json:"isCompleteMonth"`
	Status             string   `json:"status"`
}

// ResultItem is a MonthlyResult joined with its subject for listings.
type ResultItem struct {
	MonthlyResult
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ComputedAt time.Time `json:"computedAt"`
}

type ResultFilter struct {
	Tier string
}

type Period struct {
	MonthKey     string     `json:"monthKey"`
	Status       string     `json:"status"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
	LockedBy     string     `json:"lockedBy,omitempty"`
	UnlockReason string     `json:"unlockReason,omitempty"`
}

type SubjectFailure struct {
	SubjectID string `json:"subjectId"`
	Error     string `json:"error"`
}

// BatchSummary reports a month-wide compute.
type BatchSummary struct {
	MonthKey string           `json:"monthKey"`
	Computed int              `json:"computed"`
	Failed   []SubjectFailure `json:"failed"`
	Tiers    map[string]int   `json:"tiers"`
}

type TransitionResult struct {
	Period      Period `json:"period"`
	Results     int64  `json:"results"`
	FundEntries int64  `json:"fundEntries"`
}

// ResultDetail carries a result with the weekly scores it was computed from.
type ResultDetail struct {
	Result ResultItem        `json:"result"`
	Weeks  []string          `json:"weeks"`
	Weekly []WeeklyBreakdown `json:"weekly"`
}

// WeeklyBreakdown is one expected week; Recorded is false for missing weeks.
type WeeklyBreakdown struct {
	WeekKey      string  `json:"weekKey"`
	Recorded     bool    `json:"recorded"`
	AverageScore float64 `json:"averageScore"`
	IsComplete   bool    `json:"isComplete"`
}

func ValidTier(tier string) bool {
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}
