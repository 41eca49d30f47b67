package reports

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"bizops/internal/domain/monthly"
	"bizops/internal/platform/config"
)

// RenderStatement writes a one-page PDF performance statement.
func RenderStatement(w io.Writer, contact config.Contact, period monthly.Period, detail monthly.ResultDetail) error {
	r := detail.Result

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Performance statement %s", r.MonthKey), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, contact.CompanyName)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Monthly performance statement: %s", r.MonthKey))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Name: %s", r.FullName),
		fmt.Sprintf("Email: %s", r.Email),
		fmt.Sprintf("Month status: %s", period.Status),
		fmt.Sprintf("Monthly score: %s", scoreText(r.MonthlyScore)),
		fmt.Sprintf("Tier: %s", r.Tier),
		fmt.Sprintf("Weeks scored: %d of %d", r.WeeksCountUsed, r.ExpectedWeeksCount),
		fmt.Sprintf("Base fine: %.2f %s", r.BaseFine, contact.Currency),
		fmt.Sprintf("Final fine: %.2f %s", r.FinalFine, contact.Currency),
		fmt.Sprintf("Gift: %s", giftText(r.GiftAmount, contact.Currency)),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 8, "Week ending", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Score", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Complete", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, week := range detail.Weekly {
		score, complete := "-", "-"
		if week.Recorded {
			score = fmt.Sprintf("%.2f", week.AverageScore)
			complete = "no"
			if week.IsComplete {
				complete = "yes"
			}
		}
		pdf.CellFormat(60, 8, week.WeekKey, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, score, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, complete, "1", 1, "C", false, 0, "")
	}

	if contact.Email != "" || contact.Phone != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("Contact: %s %s", contact.Email, contact.Phone))
	}
	return pdf.Output(w)
}

func scoreText(score *float64) string {
	if score == nil {
		return "no data"
	}
	return fmt.Sprintf("%.2f", *score)
}

func giftText(gift *float64, currency string) string {
	if gift == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f %s", *gift, currency)
}
