package monthly

import (
	"math"
	"sort"

	"bizops/internal/domain/kpi"
	"bizops/internal/platform/config"
)

// MaxIncompleteStreak bounds how many earlier months feed the fine multiplier.
const MaxIncompleteStreak = 12

var tierRank = map[string]int{
	TierBonus:        4,
	TierAppreciation: 3,
	TierImprovement:  2,
	TierFine:         1,
	TierNoData:       0,
}

// TierRank orders scored tiers; a higher rank is a better tier.
func TierRank(tier string) int {
	return tierRank[tier]
}

// Calculator turns weekly scores into a MonthlyResult. It holds no state
// besides the policy and never touches storage.
type Calculator struct {
	policy config.Policy
}

func NewCalculator(policy config.Policy) Calculator {
	return Calculator{policy: policy}
}

func (c Calculator) Policy() config.Policy {
	return c.policy
}

type Input struct {
	SubjectID string
	Month     MonthKey
	Weekly    []kpi.WeeklyScore
	// IncompleteStreak counts consecutive earlier incomplete months.
	IncompleteStreak int
}

func (c Calculator) Classify(score float64) string {
	switch {
	case score >= c.policy.BonusCutoff:
		return TierBonus
	case score >= c.policy.AppreciationCutoff:
		return TierAppreciation
	case score >= c.policy.ImprovementCutoff:
		return TierImprovement
	default:
		return TierFine
	}
}

// FineMultiplier is 1 + step*streak, capped by the policy maximum.
func (c Calculator) FineMultiplier(streak int) float64 {
	if streak <= 0 {
		return 1
	}
	if streak > MaxIncompleteStreak {
		streak = MaxIncompleteStreak
	}
	return math.Min(1+c.policy.RepeatIncompleteStep*float64(streak), c.policy.MaxFineMultiplier)
}

// Compute aggregates the weekly scores that belong to in.Month. Scores for
// other weeks and duplicates of a week are ignored.
func (c Calculator) Compute(in Input) MonthlyResult {
	weeks := in.Month.Weeks()
	expected := make(map[string]bool, len(weeks))
	for _, w := range weeks {
		expected[w] = true
	}

	used := make([]kpi.WeeklyScore, 0, len(in.Weekly))
	seen := make(map[string]bool, len(in.Weekly))
	for _, ws := range in.Weekly {
		if !expected[ws.WeekKey] || seen[ws.WeekKey] {
			continue
		}
		seen[ws.WeekKey] = true
		used = append(used, ws)
	}
	sort.Slice(used, func(i, j int) bool { return used[i].WeekKey < used[j].WeekKey })

	result := MonthlyResult{
		SubjectID:          in.SubjectID,
		MonthKey:           in.Month.String(),
		WeeksCountUsed:     len(used),
		ExpectedWeeksCount: len(weeks),
		IsCompleteMonth:    len(used) == len(weeks),
		Status:             StatusOpen,
	}

	if len(used) == 0 {
		result.Tier = TierNoData
		result.ActionType = ActionNone
		return result
	}

	sum := 0.0
	for _, ws := range used {
		sum += ws.AverageScore
	}
	score := sum / float64(len(used))
	result.MonthlyScore = &score
	result.Tier = c.Classify(score)

	switch result.Tier {
	case TierBonus:
		result.ActionType = ActionGift
		result.GiftAmount = amount(c.policy.BonusGift)
	case TierAppreciation:
		result.ActionType = ActionGift
		result.GiftAmount = amount(c.policy.AppreciationGift)
	case TierImprovement:
		result.ActionType = ActionCoaching
	case TierFine:
		result.ActionType = ActionFine
		result.BaseFine = round2(c.policy.BaseFine(score))
		result.FinalFine = result.BaseFine
		if !result.IsCompleteMonth {
			result.FinalFine = round2(result.BaseFine * c.FineMultiplier(in.IncompleteStreak))
		}
	}
	return result
}

func amount(value float64) *float64 {
	v := round2(value)
	return &v
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
