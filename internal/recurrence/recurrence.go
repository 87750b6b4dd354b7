// Package recurrence implements pure date-cycle arithmetic for recurring
// transactions: occurrence testing and cycle boundary resolution for the
// codes D, W, BW, M, Q, S and Y.
package recurrence

import (
	"github.com/envelhq/envel/internal/model"
)

// scanWindowDays bounds the backward scan used for month-based and irregular
// patterns in CycleStartFor.
const scanWindowDays = 365

// periodDays returns the fixed day period for day-based codes.
func periodDays(code string) (int, bool) {
	switch code {
	case model.RecurDaily:
		return 1, true
	case model.RecurWeekly:
		return 7, true
	case model.RecurBiweekly:
		return 14, true
	}
	return 0, false
}

// periodMonths returns the month period for month-based codes.
func periodMonths(code string) (int, bool) {
	switch code {
	case model.RecurMonthly:
		return 1, true
	case model.RecurQuarterly:
		return 3, true
	case model.RecurSemiannual:
		return 6, true
	}
	return 0, false
}

// OccursOn reports whether the master transaction has an occurrence on d.
func OccursOn(master model.Transaction, d model.Date) bool {
	if master.Recurrence == "" || d.IsZero() {
		return false
	}
	if master.HasException(d) {
		return false
	}
	if !master.RecurrenceEnd.IsZero() && !d.Before(master.RecurrenceEnd) {
		return false
	}
	op := master.Date()
	if op.IsZero() || d.Before(op) {
		return false
	}

	switch master.Recurrence {
	case model.RecurDaily:
		return true
	case model.RecurWeekly:
		return d.DaysSince(op)%7 == 0
	case model.RecurBiweekly:
		return d.DaysSince(op)%14 == 0
	case model.RecurMonthly, model.RecurQuarterly, model.RecurSemiannual:
		months, _ := periodMonths(master.Recurrence)
		return d.Day() == op.Day() && d.MonthsSince(op)%months == 0
	case model.RecurYearly:
		return d.Month() == op.Month() && d.Day() == op.Day()
	}
	return false
}

// NextFrom steps one cycle boundary forward from an occurrence date.
func NextFrom(occurrence model.Date, code string) model.Date {
	if days, ok := periodDays(code); ok {
		return occurrence.AddDays(days)
	}
	if months, ok := periodMonths(code); ok {
		return occurrence.AddMonths(months)
	}
	if code == model.RecurYearly {
		return occurrence.AddYears(1)
	}
	return occurrence
}

// PrevFrom steps one cycle boundary back from an occurrence date.
func PrevFrom(occurrence model.Date, code string) model.Date {
	if days, ok := periodDays(code); ok {
		return occurrence.AddDays(-days)
	}
	if months, ok := periodMonths(code); ok {
		return occurrence.AddMonths(-months)
	}
	if code == model.RecurYearly {
		return occurrence.AddYears(-1)
	}
	return occurrence
}

// CycleStartFor returns the date that begins the cycle containing target.
// Day-based codes use modular arithmetic; month-based and irregular patterns
// scan backward from target for the most recent occurrence. Returns false if
// no occurrence exists within the scan window.
func CycleStartFor(master model.Transaction, target model.Date) (model.Date, bool) {
	if master.Recurrence == "" || target.IsZero() {
		return model.Date{}, false
	}
	op := master.Date()
	if op.IsZero() || target.Before(op) {
		return model.Date{}, false
	}

	if period, ok := periodDays(master.Recurrence); ok {
		remainder := target.DaysSince(op) % period
		start := target.AddDays(-remainder)
		if start.Before(op) {
			start = op
		}
		return start, true
	}

	for i := 0; i <= scanWindowDays; i++ {
		d := target.AddDays(-i)
		if d.Before(op) {
			break
		}
		if OccursOn(master, d) {
			return d, true
		}
	}
	return model.Date{}, false
}

// CycleWindow returns the inclusive window of the cycle containing target:
// its start date and the next cycle boundary as the end date.
func CycleWindow(master model.Transaction, target model.Date) (start, end model.Date, ok bool) {
	start, ok = CycleStartFor(master, target)
	if !ok {
		return model.Date{}, model.Date{}, false
	}
	return start, NextFrom(start, master.Recurrence), true
}
