package model

import "math"

// Recurrence codes. Day-based codes repeat on a fixed day period;
// month-based codes repeat on the same day of the month.
const (
	RecurDaily      = "D"
	RecurWeekly     = "W"
	RecurBiweekly   = "BW"
	RecurMonthly    = "M"
	RecurQuarterly  = "Q"
	RecurSemiannual = "S"
	RecurYearly     = "Y"
)

// Transaction is one ledger entry. Expenses carry negative values. A
// transaction with a recurrence code and no parent is a recurring master;
// its occurrences are derived, not stored.
type Transaction struct {
	ID       string  `json:"id"`
	Val      float64 `json:"val"`
	OpDate   Date    `json:"opDate,omitempty"`
	PostDate Date    `json:"postDate,omitempty"`
	Method   string  `json:"method,omitempty"`

	Recurrence    string `json:"recurrence,omitempty"`
	RecurrenceEnd Date   `json:"recurrenceEnd,omitempty"`
	Exceptions    []Date `json:"exceptions,omitempty"`
	ParentID      string `json:"parentId,omitempty"`

	BudgetTag string `json:"budgetTag,omitempty"`
	Planned   bool   `json:"planned,omitempty"`

	// Materialization markers. Entries emitted by the budget materializer
	// carry the id of the budget record they reserve for or return to.
	IsBudgetMaterialization bool   `json:"isBudgetMaterialization,omitempty"`
	BudgetReserveFor        string `json:"budgetReserveFor,omitempty"`
	BudgetReturnFor         string `json:"budgetReturnFor,omitempty"`
}

// Date returns the transaction's effective calendar date: the operation
// date, falling back to the posting date.
func (t Transaction) Date() Date {
	if !t.OpDate.IsZero() {
		return t.OpDate
	}
	return t.PostDate
}

// IsRecurringMaster reports whether the transaction defines a recurring
// series rather than being a single entry or a derived occurrence.
func (t Transaction) IsRecurringMaster() bool {
	return t.Recurrence != "" && t.ParentID == ""
}

// HasException reports whether d is excluded from the recurring series.
func (t Transaction) HasException(d Date) bool {
	for _, e := range t.Exceptions {
		if e == d {
			return true
		}
	}
	return false
}

// Abs returns the transaction's magnitude.
func (t Transaction) Abs() float64 { return math.Abs(t.Val) }
