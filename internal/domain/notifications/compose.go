package notifications

import (
	"fmt"
	"math"
	"strings"

	"bizops/internal/domain/monthly"
	"bizops/internal/platform/config"
)

// ComposeMonthlyResult renders the plain-text result email for one subject.
func ComposeMonthlyResult(contact config.Contact, detail monthly.ResultDetail) (string, string) {
	r := detail.Result
	subject := fmt.Sprintf("%s: performance result for %s", contact.CompanyName, r.MonthKey)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", r.FullName)
	fmt.Fprintf(&b, "Your performance result for %s has been computed.\n\n", r.MonthKey)

	if r.MonthlyScore != nil {
		fmt.Fprintf(&b, "Monthly score: %.2f\n", *r.MonthlyScore)
	} else {
		b.WriteString("Monthly score: no weekly scores recorded\n")
	}
	fmt.Fprintf(&b, "Tier: %s\n", TierLabel(r.Tier))
	completeness := "complete"
	if !r.IsCompleteMonth {
		completeness = "incomplete"
	}
	fmt.Fprintf(&b, "Weeks scored: %d of %d (%s)\n", r.WeeksCountUsed, r.ExpectedWeeksCount, completeness)

	switch {
	case r.FinalFine > 0:
		fmt.Fprintf(&b, "Fine: %s", Money(r.FinalFine, contact.Currency))
		if r.FinalFine != r.BaseFine {
			fmt.Fprintf(&b, " (base %s, raised for repeated incomplete months)", Money(r.BaseFine, contact.Currency))
		}
		b.WriteString("\n")
	case r.GiftAmount != nil && *r.GiftAmount > 0:
		fmt.Fprintf(&b, "Gift: %s\n", Money(*r.GiftAmount, contact.Currency))
	}

	b.WriteString("\nWeekly breakdown:\n")
	for _, w := range detail.Weekly {
		if w.Recorded {
			fmt.Fprintf(&b, "  Week ending %s: %.2f\n", w.WeekKey, w.AverageScore)
		} else {
			fmt.Fprintf(&b, "  Week ending %s: not recorded\n", w.WeekKey)
		}
	}

	b.WriteString("\n")
	if line := contactLine(contact); line != "" {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n%s\n", contact.CompanyName)
	return subject, b.String()
}

func TierLabel(tier string) string {
	switch tier {
	case monthly.TierBonus:
		return "Bonus"
	case monthly.TierAppreciation:
		return "Appreciation"
	case monthly.TierImprovement:
		return "Needs improvement"
	case monthly.TierFine:
		return "Fine"
	case monthly.TierNoData:
		return "No data"
	}
	return tier
}

// Money formats an amount with two decimals and thousands separators.
func Money(amount float64, currency string) string {
	raw := fmt.Sprintf("%.2f", math.Abs(amount))
	sign := ""
	if amount < 0 && raw != "0.00" {
		sign = "-"
	}
	whole, frac := raw[:len(raw)-3], raw[len(raw)-2:]
	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}
	out := sign + grouped.String() + "." + frac
	if currency != "" {
		out += " " + currency
	}
	return out
}

func contactLine(contact config.Contact) string {
	var parts []string
	if contact.Email != "" {
		parts = append(parts, contact.Email)
	}
	if contact.Phone != "" {
		parts = append(parts, contact.Phone)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Questions? Contact us at " + strings.Join(parts, " or ") + "."
}
