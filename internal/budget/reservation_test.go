package budget

import (
	"testing"

	"github.com/envelhq/envel/internal/model"
)

func TestSpentInPeriod(t *testing.T) {
	start := model.MustDate("2025-02-01")
	end := model.MustDate("2025-02-28")

	planned := spend("t-planned", "#luz", "2025-02-10", -60)
	planned.Planned = true
	mat := spend("t-mat", "#luz", "2025-02-10", -60)
	mat.IsBudgetMaterialization = true

	txs := []model.Transaction{
		spend("t1", "#luz", "2025-02-01", -30), // inclusive start
		spend("t2", "#luz", "2025-02-28", -20), // inclusive end
		spend("t3", "#luz", "2025-01-31", -10), // before window
		spend("t4", "#luz", "2025-03-01", -10), // after window
		spend("t5", "#agua", "2025-02-10", -10),
		spend("t-trigger", "#luz", "2025-02-05", -100),
		planned,
		mat,
	}

	got := SpentInPeriod(txs, "#luz", start, end, SpendFilter{ExcludeTxID: "t-trigger"})
	if got != 50 {
		t.Fatalf("SpentInPeriod = %v, want 50", got)
	}

	// With no trigger id the filter falls back to matching by date.
	got = SpentInPeriod(txs, "#luz", start, end, SpendFilter{ExcludeDate: model.MustDate("2025-02-05")})
	if got != 50 {
		t.Fatalf("SpentInPeriod with date filter = %v, want 50", got)
	}
}

func TestRecompute(t *testing.T) {
	b := activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100)
	b.TriggerTxID = "t-trigger"

	txs := []model.Transaction{
		spend("t-trigger", "#luz", "2025-02-05", -100),
		spend("t1", "#luz", "2025-02-10", -40),
	}

	got := Recompute(b, txs)
	if got.SpentValue != 40 || got.ReservedValue != 60 {
		t.Fatalf("Recompute = spent %v reserved %v, want 40/60", got.SpentValue, got.ReservedValue)
	}
	if b.SpentValue != 0 {
		t.Error("Recompute mutated its input")
	}

	// Overspending floors the reservation at zero.
	txs = append(txs, spend("t2", "#luz", "2025-02-15", -200))
	if got := Recompute(b, txs); got.ReservedValue != 0 {
		t.Fatalf("overspent ReservedValue = %v, want 0", got.ReservedValue)
	}
}

func TestReservedTotalPersistedCycle(t *testing.T) {
	budgets := []model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
	}
	txs := []model.Transaction{
		spend("t1", "#luz", "2025-02-10", -40),
	}

	if got := ReservedTotalForDate(budgets, txs, model.MustDate("2025-02-15"), ProjectionOptions{}); got != 60 {
		t.Fatalf("ReservedTotal = %v, want 60", got)
	}

	// A target outside the window contributes nothing.
	if got := ReservedTotalForDate(budgets, txs, model.MustDate("2025-01-15"), ProjectionOptions{}); got != 0 {
		t.Fatalf("ReservedTotal before window = %v, want 0", got)
	}

	// Closed records contribute nothing.
	budgets[0].Status = model.BudgetClosed
	if got := ReservedTotalForDate(budgets, txs, model.MustDate("2025-02-15"), ProjectionOptions{}); got != 0 {
		t.Fatalf("ReservedTotal for closed record = %v, want 0", got)
	}

	// Zero target short-circuits.
	if got := ReservedTotalForDate(budgets, txs, model.Date{}, ProjectionOptions{}); got != 0 {
		t.Fatalf("ReservedTotal for zero target = %v, want 0", got)
	}
}

// A monthly master with no persisted record still projects: the cycle
// containing the target is synthesized and its window spend subtracted.
func TestReservedTotalSyntheticWalk(t *testing.T) {
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2025-01-05", model.RecurMonthly, -500),
		spend("t1", "#mercado", "2025-01-10", -120),
	}

	if got := ReservedTotalForDate(nil, txs, model.MustDate("2025-01-20"), ProjectionOptions{}); got != 380 {
		t.Fatalf("ReservedTotal = %v, want 380", got)
	}

	// A target in the second cycle accumulates both: the fresh cycle at its
	// full value plus the first cycle's unspent remainder.
	if got := ReservedTotalForDate(nil, txs, model.MustDate("2025-02-20"), ProjectionOptions{}); got != 880 {
		t.Fatalf("ReservedTotal across two cycles = %v, want 880", got)
	}
}

// A cycle already realized as a reserve ledger entry is excluded from the
// projection entirely: the money already left the balance.
func TestReservedTotalSkipsMaterializedCycles(t *testing.T) {
	reserve := model.Transaction{
		ID:                      "mat-1",
		Val:                     -500,
		OpDate:                  model.MustDate("2025-01-05"),
		Method:                  MaterializationMethod,
		BudgetTag:               "#mercado",
		IsBudgetMaterialization: true,
		BudgetReserveFor:        "b-jan",
	}
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2025-01-05", model.RecurMonthly, -500),
		reserve,
	}

	if got := ReservedTotalForDate(nil, txs, model.MustDate("2025-01-20"), ProjectionOptions{}); got != 0 {
		t.Fatalf("ReservedTotal = %v, want 0 for a materialized cycle", got)
	}
}

// A cycle that is both persisted and derivable from its master counts once.
func TestReservedTotalNoDoubleCount(t *testing.T) {
	b := activeBudget("b1", "#mercado", model.BudgetRecurring, "2025-01-05", "2025-02-05", 500)
	b.TriggerTxID = "m1"
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2025-01-05", model.RecurMonthly, -500),
		spend("t1", "#mercado", "2025-01-10", -120),
	}

	got := ReservedTotalForDate([]model.BudgetRecord{b}, txs, model.MustDate("2025-01-20"), ProjectionOptions{})
	if got != 380 {
		t.Fatalf("ReservedTotal = %v, want 380 counted once", got)
	}
}

// Planned transactions inside the cycle window seed the synthetic cycle's
// budget; the master's own value is only the fallback.
func TestReservedTotalSeedsFromPlanned(t *testing.T) {
	p1 := spend("p1", "#mercado", "2025-01-10", -200)
	p1.Planned = true
	p2 := spend("p2", "#mercado", "2025-01-20", -100)
	p2.Planned = true
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2025-01-05", model.RecurMonthly, -500),
		p1, p2,
	}

	if got := ReservedTotalForDate(nil, txs, model.MustDate("2025-01-20"), ProjectionOptions{}); got != 300 {
		t.Fatalf("ReservedTotal = %v, want 300 seeded from planned entries", got)
	}
}

// The earliest persisted start for a tag bounds the synthetic backward
// walk: history before the first known record is not re-synthesized.
func TestReservedTotalSyntheticWalkBound(t *testing.T) {
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2024-10-05", model.RecurMonthly, -500),
	}
	target := model.MustDate("2025-01-20")

	// Unbounded: four cycles back to the master's own date.
	if got := ReservedTotalForDate(nil, txs, target, ProjectionOptions{}); got != 2000 {
		t.Fatalf("unbounded ReservedTotal = %v, want 2000", got)
	}

	// A persisted record, even closed, tightens the bound to its start.
	b := activeBudget("b-jan", "#mercado", model.BudgetRecurring, "2025-01-05", "2025-02-05", 500)
	b.Status = model.BudgetClosed
	if got := ReservedTotalForDate([]model.BudgetRecord{b}, txs, target, ProjectionOptions{}); got != 500 {
		t.Fatalf("bounded ReservedTotal = %v, want 500", got)
	}
}

func TestReservedTotalFreeze(t *testing.T) {
	budgets := []model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
	}
	txs := []model.Transaction{
		spend("t1", "#luz", "2025-02-20", -40),
	}
	target := model.MustDate("2025-02-28")

	if got := ReservedTotalForDate(budgets, txs, target, ProjectionOptions{}); got != 60 {
		t.Fatalf("ReservedTotal without freeze = %v, want 60", got)
	}

	// Spend after the freeze date does not release reservation early.
	opts := ProjectionOptions{FreezeAt: model.MustDate("2025-02-10")}
	if got := ReservedTotalForDate(budgets, txs, target, opts); got != 100 {
		t.Fatalf("ReservedTotal frozen at 02-10 = %v, want 100", got)
	}
}

// Under a freeze, a cycle that ends between the freeze point and the
// target is still held: its return has not happened as of the freeze.
func TestReservedTotalFreezeHoldsEndedCycle(t *testing.T) {
	budgets := []model.BudgetRecord{
		activeBudget("b1", "#agua", model.BudgetAdHoc, "2025-02-01", "2025-02-10", 50),
	}
	target := model.MustDate("2025-02-28")

	if got := ReservedTotalForDate(budgets, nil, target, ProjectionOptions{}); got != 0 {
		t.Fatalf("ReservedTotal past window = %v, want 0", got)
	}
	opts := ProjectionOptions{FreezeAt: model.MustDate("2025-02-05")}
	if got := ReservedTotalForDate(budgets, nil, target, opts); got != 50 {
		t.Fatalf("ReservedTotal frozen before window end = %v, want 50", got)
	}
}

func TestReservedTotalIsPure(t *testing.T) {
	budgets := []model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
	}
	txs := []model.Transaction{
		recurringMaster("m1", "#mercado", "2025-01-05", model.RecurMonthly, -500),
		spend("t1", "#luz", "2025-02-10", -40),
	}
	target := model.MustDate("2025-02-15")

	first := ReservedTotalForDate(budgets, txs, target, ProjectionOptions{})
	second := ReservedTotalForDate(budgets, txs, target, ProjectionOptions{})
	if first != second {
		t.Fatalf("repeated calls disagree: %v then %v", first, second)
	}
}
