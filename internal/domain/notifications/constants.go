package notifications

const (
	TypeMonthlyResult = "monthly_result"
	TypeMonthLocked   = "month_locked"
	TypeMonthUnlocked = "month_unlocked"
)
