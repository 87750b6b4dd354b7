package budget

import (
	"github.com/google/uuid"

	"github.com/envelhq/envel/internal/model"
	"github.com/envelhq/envel/internal/recurrence"
)

// CycleContext optionally carries precomputed cycle boundaries for
// UpsertFromTransaction; zero dates are resolved from the recurrence
// clock.
type CycleContext struct {
	Occurrence     model.Date
	NextOccurrence model.Date
}

// UpsertFromTransaction creates or refreshes the budget triggered by a
// tagged transaction. A recurring transaction opens (or advances to) the
// cycle containing today; an ad-hoc transaction must be future-dated and
// opens a window from today to its operation date. Returns the affected
// record and whether anything changed.
func (e *Engine) UpsertFromTransaction(tx model.Transaction, cctx CycleContext) (model.BudgetRecord, bool, error) {
	if tx.BudgetTag == "" || tx.IsBudgetMaterialization {
		return model.BudgetRecord{}, false, nil
	}
	if tx.IsRecurringMaster() {
		return e.upsertRecurring(tx, cctx)
	}
	return e.upsertAdHoc(tx)
}

func (e *Engine) upsertRecurring(tx model.Transaction, cctx CycleContext) (model.BudgetRecord, bool, error) {
	today := e.Today()
	txs := e.Transactions()

	start := cctx.Occurrence
	if start.IsZero() {
		var ok bool
		start, ok = recurrence.CycleStartFor(tx, today)
		if !ok {
			return model.BudgetRecord{}, false, nil
		}
	}
	end := cctx.NextOccurrence
	if end.IsZero() {
		end = recurrence.NextFrom(start, tx.Recurrence)
	}

	recurrenceID := tx.ParentID
	if recurrenceID == "" {
		recurrenceID = tx.ID
	}

	now := e.now()
	budgets := e.store.Load()
	for i, b := range budgets {
		if !b.IsActive() || b.Type != model.BudgetRecurring || b.Tag != tx.BudgetTag {
			continue
		}
		if b.StartDate == start && b.EndDate == end {
			// Same cycle: refresh in place.
			nb := Recompute(b, txs)
			nb.UpdatedAt = now
			budgets[i] = nb
			return nb, true, e.store.Save(budgets)
		}
		// Different window: close the old cycle and chain the new one.
		nb := Recompute(b, txs)
		nb.Status = model.BudgetClosed
		nb.UpdatedAt = now
		budgets[i] = nb
		if b.RecurrenceID != "" {
			recurrenceID = b.RecurrenceID
		}
	}

	created := e.newCycleRecord(tx, txs, model.BudgetRecurring, start, end, recurrenceID)
	budgets = append(budgets, created)
	return created, true, e.store.Save(budgets)
}

func (e *Engine) upsertAdHoc(tx model.Transaction) (model.BudgetRecord, bool, error) {
	today := e.Today()
	target := tx.Date()
	if target.IsZero() || !target.After(today) {
		// Only future-dated transactions open an ad-hoc budget.
		return model.BudgetRecord{}, false, nil
	}
	txs := e.Transactions()
	now := e.now()

	budgets := e.store.Load()
	for i, b := range budgets {
		if !b.IsActive() || b.Type != model.BudgetAdHoc || b.Tag != tx.BudgetTag {
			continue
		}
		// Update in place, keeping the original creation date.
		b.EndDate = target
		b.InitialValue = tx.Abs()
		b.TriggerTxID = tx.ID
		b.TriggerTxDate = target
		b.UpdatedAt = now
		nb := Recompute(b, txs)
		budgets[i] = nb
		return nb, true, e.store.Save(budgets)
	}

	created := e.newCycleRecord(tx, txs, model.BudgetAdHoc, today, target, "")
	budgets = append(budgets, created)
	return created, true, e.store.Save(budgets)
}

// newCycleRecord builds an active record for the window, seeding the
// initial value from planned transactions in the window and falling back
// to the trigger's absolute value.
func (e *Engine) newCycleRecord(trigger model.Transaction, txs []model.Transaction, typ model.BudgetType, start, end model.Date, recurrenceID string) model.BudgetRecord {
	initial := trigger.Abs()
	if typ == model.BudgetRecurring {
		if seeded := seedInitialValue(txs, trigger.BudgetTag, start, end, trigger.ID); seeded > 0 {
			initial = seeded
		}
	}

	b := model.BudgetRecord{
		ID:            uuid.NewString(),
		Tag:           trigger.BudgetTag,
		Type:          typ,
		Status:        model.BudgetActive,
		StartDate:     start,
		EndDate:       end,
		InitialValue:  initial,
		RecurrenceID:  recurrenceID,
		TriggerTxID:   trigger.ID,
		TriggerTxDate: trigger.Date(),
		UpdatedAt:     e.now(),
	}
	return Recompute(b, txs)
}

// EnsureRecurring makes sure every tag with a recurring master has an
// active record for the cycle containing today, chaining from (and
// closing) any stale cycle. Returns the number of cycles created.
func (e *Engine) EnsureRecurring(txs []model.Transaction, today model.Date) (int, error) {
	masters := make(map[string]model.Transaction)
	for _, t := range txs {
		if !t.IsRecurringMaster() || t.BudgetTag == "" || t.IsBudgetMaterialization {
			continue
		}
		if cur, ok := masters[t.BudgetTag]; !ok || t.Date().After(cur.Date()) {
			masters[t.BudgetTag] = t
		}
	}
	if len(masters) == 0 {
		return 0, nil
	}

	budgets := e.store.Load()
	now := e.now()
	created := 0
	changed := false

	for tag, m := range masters {
		start, end, ok := recurrence.CycleWindow(m, today)
		if !ok {
			continue
		}

		exists := false
		for _, b := range budgets {
			if b.IsActive() && b.Type == model.BudgetRecurring && b.Tag == tag &&
				b.StartDate == start && b.EndDate == end {
				exists = true
				break
			}
		}
		if exists {
			continue
		}

		recurrenceID := m.ParentID
		if recurrenceID == "" {
			recurrenceID = m.ID
		}
		for i, b := range budgets {
			if b.IsActive() && b.Type == model.BudgetRecurring && b.Tag == tag {
				nb := Recompute(b, txs)
				nb.Status = model.BudgetClosed
				nb.UpdatedAt = now
				budgets[i] = nb
				if b.RecurrenceID != "" {
					recurrenceID = b.RecurrenceID
				}
			}
		}

		budgets = append(budgets, e.newCycleRecord(m, txs, model.BudgetRecurring, start, end, recurrenceID))
		created++
		changed = true
	}

	if !changed {
		return 0, nil
	}
	return created, e.store.Save(budgets)
}

// CloseExpired recomputes and closes every active record whose window has
// fully passed. Returns the number of records closed.
func (e *Engine) CloseExpired(txs []model.Transaction, today model.Date) (int, error) {
	budgets := e.store.Load()
	closed := 0

	for i, b := range budgets {
		if !b.IsActive() || b.EndDate.IsZero() || !b.EndDate.Before(today) {
			continue
		}
		nb := Recompute(b, txs)
		nb.Status = model.BudgetClosed
		nb.UpdatedAt = e.now()
		budgets[i] = nb
		closed++
	}

	if closed == 0 {
		return 0, nil
	}
	return closed, e.store.Save(budgets)
}
