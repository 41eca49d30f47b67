package reports

import (
	"math"

	"bizops/internal/domain/monthly"
)

// Summarize counts tiers and totals money over results. The average covers
// scored results only; NO_DATA rows are counted but not averaged.
func Summarize(monthKey, status string, results []monthly.ResultItem) MonthSummary {
	summary := MonthSummary{MonthKey: monthKey, Status: status, Tiers: map[string]int{}}
	for _, tier := range monthly.Tiers {
		summary.Tiers[tier] = 0
	}
	sum, scored := 0.0, 0
	for _, r := range results {
		summary.Subjects++
		summary.Tiers[r.Tier]++
		if r.IsCompleteMonth {
			summary.Complete++
		} else {
			summary.Incomplete++
		}
		summary.TotalFines += r.FinalFine
		if r.GiftAmount != nil {
			summary.TotalGifts += *r.GiftAmount
		}
		if r.MonthlyScore != nil {
			sum += *r.MonthlyScore
			scored++
		}
	}
	summary.TotalFines = round2(summary.TotalFines)
	summary.TotalGifts = round2(summary.TotalGifts)
	if scored > 0 {
		avg := round2(sum / float64(scored))
		summary.AverageScore = &avg
	}
	return summary
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
