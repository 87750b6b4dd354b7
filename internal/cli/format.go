// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/envelhq/envel/internal/model"
)

// FormatAmount formats a monetary value with two decimals and comma
// separators. e.g., 1234.5 -> "1,234.50"
func FormatAmount(v float64) string {
	if v < 0 {
		return "-" + FormatAmount(-v)
	}
	whole := int64(math.Floor(v))
	cents := int64(math.Round((v - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}
	return fmt.Sprintf("%s.%02d", groupThousands(whole), cents)
}

// FormatSignedAmount formats a value with an explicit sign, for ledger
// entries where direction matters.
func FormatSignedAmount(v float64) string {
	if v >= 0 {
		return "+" + FormatAmount(v)
	}
	return "-" + FormatAmount(-v)
}

// FormatDate renders a date for table cells; the zero date renders as "-".
func FormatDate(d model.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatRecurrence expands a recurrence code for display.
func FormatRecurrence(code string) string {
	switch code {
	case model.RecurDaily:
		return "daily"
	case model.RecurWeekly:
		return "weekly"
	case model.RecurBiweekly:
		return "biweekly"
	case model.RecurMonthly:
		return "monthly"
	case model.RecurQuarterly:
		return "quarterly"
	case model.RecurSemiannual:
		return "semiannual"
	case model.RecurYearly:
		return "yearly"
	case "":
		return "-"
	}
	return code
}

// groupThousands adds comma separators to an integer.
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
