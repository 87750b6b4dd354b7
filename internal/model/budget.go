package model

import "time"

// BudgetType distinguishes one-shot budgets from recurring cycles.
type BudgetType string

// Budget types.
const (
	BudgetAdHoc     BudgetType = "ad-hoc"
	BudgetRecurring BudgetType = "recurring"
)

// BudgetStatus is the lifecycle state of a budget record. Closed is terminal.
type BudgetStatus string

// Budget statuses.
const (
	BudgetActive BudgetStatus = "active"
	BudgetClosed BudgetStatus = "closed"
)

// NormalizeBudgetType coerces arbitrary input to a valid type, defaulting
// to ad-hoc.
func NormalizeBudgetType(s string) BudgetType {
	if BudgetType(s) == BudgetRecurring {
		return BudgetRecurring
	}
	return BudgetAdHoc
}

// NormalizeBudgetStatus coerces arbitrary input to a valid status, defaulting
// to active.
func NormalizeBudgetStatus(s string) BudgetStatus {
	if BudgetStatus(s) == BudgetClosed {
		return BudgetClosed
	}
	return BudgetActive
}

// BudgetRecord is a time-bounded reservation against one tag. The window
// [StartDate, EndDate] is inclusive on both ends.
type BudgetRecord struct {
	ID     string       `json:"id"`
	Tag    string       `json:"tag"`
	Type   BudgetType   `json:"budgetType"`
	Status BudgetStatus `json:"status"`

	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`

	InitialValue  float64 `json:"initialValue"`
	SpentValue    float64 `json:"spentValue"`
	ReservedValue float64 `json:"reservedValue"`

	// RecurrenceID links successive cycles of the same recurring source.
	RecurrenceID string `json:"recurrenceId,omitempty"`

	// Trigger identifies the transaction whose amount seeded InitialValue;
	// it is excluded from the budget's own spend accounting.
	TriggerTxID   string `json:"triggerTxId,omitempty"`
	TriggerTxDate Date   `json:"triggerTxIso,omitempty"`

	// UpdatedAt is the reconciliation tie-breaker.
	UpdatedAt time.Time `json:"lastUpdated"`
}

// IsActive reports whether the record is in the active state.
func (b BudgetRecord) IsActive() bool { return b.Status == BudgetActive }

// Covers reports whether d falls inside the record's inclusive window.
func (b BudgetRecord) Covers(d Date) bool {
	return !d.Before(b.StartDate) && !d.After(b.EndDate)
}

// SemanticKey identifies the logical cycle a record describes, independent
// of its id. Remote reconciliation collapses records sharing this key.
func (b BudgetRecord) SemanticKey() string {
	return b.Tag + "|" + b.StartDate.String() + "|" + b.EndDate.String() + "|" + string(b.Type)
}

// CycleKey identifies the cycle for materialization and projection
// bookkeeping: a tag plus the cycle start date.
func CycleKey(tag string, start Date) string {
	return tag + "|" + start.String()
}
