package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"bizops/internal/domain/monthly"
)

var csvHeader = []string{
	"subject_id", "full_name", "email", "month", "monthly_score", "tier", "action_type",
	"base_fine", "final_fine", "gift_amount", "weeks_used", "weeks_expected", "complete", "status",
}

func WriteResultsCSV(w io.Writer, results []monthly.ResultItem) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.SubjectID,
			r.FullName,
			r.Email,
			r.MonthKey,
			optionalAmount(r.MonthlyScore),
			r.Tier,
			r.ActionType,
			formatAmount(r.BaseFine),
			formatAmount(r.FinalFine),
			optionalAmount(r.GiftAmount),
			strconv.Itoa(r.WeeksCountUsed),
			strconv.Itoa(r.ExpectedWeeksCount),
			strconv.FormatBool(r.IsCompleteMonth),
			r.Status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func optionalAmount(value *float64) string {
	if value == nil {
		return ""
	}
	return formatAmount(*value)
}
