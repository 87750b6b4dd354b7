package budget

import (
	"math"

	"github.com/envelhq/envel/internal/model"
	"github.com/envelhq/envel/internal/recurrence"
)

// SpendFilter designates a trigger transaction to exclude from spend
// accounting: by id when known, by matching date as a fallback guard.
type SpendFilter struct {
	ExcludeTxID string
	ExcludeDate model.Date
}

func (f SpendFilter) excludes(t model.Transaction) bool {
	if f.ExcludeTxID != "" {
		return t.ID == f.ExcludeTxID
	}
	return !f.ExcludeDate.IsZero() && t.Date() == f.ExcludeDate
}

// SpentInPeriod sums the absolute value of transactions carrying the tag
// inside the inclusive [start, end] window. Planned transactions,
// materialization entries and the designated trigger are excluded.
func SpentInPeriod(txs []model.Transaction, tag string, start, end model.Date, f SpendFilter) float64 {
	var total float64
	for _, t := range txs {
		if t.BudgetTag != tag || t.Planned || t.IsBudgetMaterialization {
			continue
		}
		d := t.Date()
		if d.IsZero() || d.Before(start) || d.After(end) {
			continue
		}
		if f.excludes(t) {
			continue
		}
		total += t.Abs()
	}
	return total
}

// Recompute refreshes SpentValue and ReservedValue against the ledger and
// returns the updated record; the original is not mutated.
func Recompute(b model.BudgetRecord, txs []model.Transaction) model.BudgetRecord {
	b.SpentValue = SpentInPeriod(txs, b.Tag, b.StartDate, b.EndDate, SpendFilter{
		ExcludeTxID: b.TriggerTxID,
		ExcludeDate: b.TriggerTxDate,
	})
	b.ReservedValue = math.Max(b.InitialValue-b.SpentValue, 0)
	return b
}

// ProjectionOptions tunes ReservedTotalForDate.
type ProjectionOptions struct {
	// FreezeAt caps spend accounting for future targets: spend after the
	// freeze date does not release reservation early.
	FreezeAt model.Date
}

// cycleReservation is one cycle's contribution to the projection,
// regardless of whether it came from a persisted record or was
// synthesized from a recurring master.
type cycleReservation struct {
	tag     string
	start   model.Date
	end     model.Date
	initial float64
	filter  SpendFilter
}

// reservedAsOf returns the unspent reservation of the cycle as of target.
// The spend cutoff is capped at min(target, freeze, cycle end).
func (c cycleReservation) reservedAsOf(txs []model.Transaction, target, freeze model.Date) float64 {
	cutoff := target
	if !freeze.IsZero() && freeze.Before(cutoff) {
		cutoff = freeze
	}
	cutoff = model.MinDate(cutoff, c.end)

	spent := SpentInPeriod(txs, c.tag, c.start, cutoff, c.filter)
	return math.Max(c.initial-spent, 0)
}

// ReservedTotalForDate computes the total virtual reservation affecting
// the balance projection for target. Cycles already realized as ledger
// transactions are excluded entirely; each remaining cycle — persisted or
// synthetic — contributes its reserved-as-of-target amount exactly once.
// The function is pure: identical inputs yield identical output.
func ReservedTotalForDate(budgets []model.BudgetRecord, txs []model.Transaction, target model.Date, opts ProjectionOptions) float64 {
	if target.IsZero() {
		return 0
	}

	materialized := materializedCycleStarts(txs)
	counted := make(map[string]struct{})
	var total float64

	// Persisted active cycles covering the target (or, under a freeze,
	// started by the target and not yet ended at the freeze point).
	for _, b := range budgets {
		if !b.IsActive() {
			continue
		}
		include := b.Covers(target)
		if !include && !opts.FreezeAt.IsZero() && target.After(opts.FreezeAt) {
			include = !b.StartDate.After(target) && !b.EndDate.Before(opts.FreezeAt)
		}
		if !include {
			continue
		}

		key := model.CycleKey(b.Tag, b.StartDate)
		if _, ok := materialized[key]; ok {
			continue
		}
		if _, ok := counted[key]; ok {
			continue
		}
		counted[key] = struct{}{}

		c := cycleReservation{
			tag:     b.Tag,
			start:   b.StartDate,
			end:     b.EndDate,
			initial: b.InitialValue,
			filter:  SpendFilter{ExcludeTxID: b.TriggerTxID, ExcludeDate: b.TriggerTxDate},
		}
		total += c.reservedAsOf(txs, target, opts.FreezeAt)
	}

	// Synthetic cycles from recurring masters, walked backward from the
	// cycle containing the target down to the tightest known lower bound.
	earliest := earliestStartByTag(budgets)
	for _, m := range txs {
		if !m.IsRecurringMaster() || m.BudgetTag == "" || m.IsBudgetMaterialization {
			continue
		}
		start, ok := recurrence.CycleStartFor(m, target)
		if !ok {
			continue
		}

		bound := m.Date()
		if e, ok := earliest[m.BudgetTag]; ok && e.After(bound) {
			bound = e
		}
		if !opts.FreezeAt.IsZero() && opts.FreezeAt.After(bound) {
			bound = opts.FreezeAt
		}

		for cur := start; !cur.Before(bound); {
			key := model.CycleKey(m.BudgetTag, cur)
			_, alreadyCounted := counted[key]
			_, isMaterialized := materialized[key]
			if !alreadyCounted && !isMaterialized {
				counted[key] = struct{}{}
				end := recurrence.NextFrom(cur, m.Recurrence)
				initial := seedInitialValue(txs, m.BudgetTag, cur, end, m.ID)
				if initial == 0 {
					initial = m.Abs()
				}
				c := cycleReservation{
					tag:     m.BudgetTag,
					start:   cur,
					end:     end,
					initial: initial,
					filter:  SpendFilter{ExcludeTxID: m.ID},
				}
				total += c.reservedAsOf(txs, target, opts.FreezeAt)
			}

			prev := recurrence.PrevFrom(cur, m.Recurrence)
			if !prev.Before(cur) {
				break
			}
			cur = prev
		}
	}

	return total
}

// materializedCycleStarts indexes cycle starts already realized in the
// ledger, keyed tag|startDate, from reserve materialization entries.
func materializedCycleStarts(txs []model.Transaction) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range txs {
		if t.IsBudgetMaterialization && t.BudgetReserveFor != "" {
			out[model.CycleKey(t.BudgetTag, t.Date())] = struct{}{}
		}
	}
	return out
}

// earliestStartByTag returns the earliest persisted budget start per tag,
// across all statuses.
func earliestStartByTag(budgets []model.BudgetRecord) map[string]model.Date {
	out := make(map[string]model.Date)
	for _, b := range budgets {
		if b.StartDate.IsZero() {
			continue
		}
		if e, ok := out[b.Tag]; !ok || b.StartDate.Before(e) {
			out[b.Tag] = b.StartDate
		}
	}
	return out
}

// seedInitialValue derives a cycle's budget from the planned transactions
// carrying the tag inside its window, excluding the trigger. Callers fall
// back to the trigger's absolute value when this is zero.
func seedInitialValue(txs []model.Transaction, tag string, start, end model.Date, triggerID string) float64 {
	var total float64
	for _, t := range txs {
		if t.BudgetTag != tag || !t.Planned || t.IsBudgetMaterialization {
			continue
		}
		if t.ID == triggerID {
			continue
		}
		d := t.Date()
		if d.IsZero() || d.Before(start) || d.After(end) {
			continue
		}
		total += t.Abs()
	}
	return total
}
