package budget

import (
	"sync"

	"github.com/google/uuid"

	"github.com/envelhq/envel/internal/model"
)

// MaterializationMethod marks ledger entries emitted by the materializer.
const MaterializationMethod = "BUDGET"

// Materializer converts budget cycles into real ledger transactions: a
// negative "reserve" entry when a cycle starts and a positive "return" of
// the unspent remainder when it ends. An in-process idempotency cache
// suppresses re-emission across repeated invocations; rebuild it from the
// ledger after any cold reload.
type Materializer struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMaterializer returns a materializer with an empty idempotency cache.
func NewMaterializer() *Materializer {
	return &Materializer{seen: make(map[string]struct{})}
}

func reserveKey(budgetID string, start model.Date) string {
	return budgetID + "|" + start.String()
}

func returnKey(budgetID string, end model.Date) string {
	return "return|" + budgetID + "|" + end.String()
}

// Generate emits the ledger transactions due as of today. The reserve is
// emitted once per active cycle whose start has arrived; the return is
// emitted once per cycle whose end has passed, skipped when the unspent
// remainder is zero. The two legs pair: a cycle whose reserve never made
// it into the ledger has nothing to give back, so its return is never
// emitted. Closed records with a reserve still get their return leg so a
// cycle closed between sweeps is not left unreturned.
func (m *Materializer) Generate(budgets []model.BudgetRecord, txs []model.Transaction, today model.Date) []model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transaction
	for _, b := range budgets {
		if b.Tag == "" || b.StartDate.IsZero() || b.EndDate.IsZero() {
			continue
		}

		if b.IsActive() && !b.StartDate.After(today) {
			key := reserveKey(b.ID, b.StartDate)
			if _, ok := m.seen[key]; !ok {
				m.seen[key] = struct{}{}
				out = append(out, model.Transaction{
					ID:                      uuid.NewString(),
					Val:                     -b.InitialValue,
					OpDate:                  b.StartDate,
					PostDate:                b.StartDate,
					Method:                  MaterializationMethod,
					BudgetTag:               b.Tag,
					IsBudgetMaterialization: true,
					BudgetReserveFor:        b.ID,
				})
			}
		}

		if today.After(b.EndDate) {
			if _, ok := m.seen[reserveKey(b.ID, b.StartDate)]; !ok {
				// Never reserved, nothing to give back.
				continue
			}
			key := returnKey(b.ID, b.EndDate)
			if _, ok := m.seen[key]; !ok {
				m.seen[key] = struct{}{}
				final := Recompute(b, txs)
				if final.ReservedValue > 0 {
					out = append(out, model.Transaction{
						ID:                      uuid.NewString(),
						Val:                     final.ReservedValue,
						OpDate:                  b.EndDate,
						PostDate:                b.EndDate,
						Method:                  MaterializationMethod,
						BudgetTag:               b.Tag,
						IsBudgetMaterialization: true,
						BudgetReturnFor:         b.ID,
					})
				}
			}
		}
	}
	return out
}

// RebuildCache reconstructs the idempotency cache from ledger entries
// bearing materialization markers. Required after any cold reload.
func (m *Materializer) RebuildCache(txs []model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = make(map[string]struct{})
	for _, t := range txs {
		if !t.IsBudgetMaterialization {
			continue
		}
		if t.BudgetReserveFor != "" {
			m.seen[reserveKey(t.BudgetReserveFor, t.Date())] = struct{}{}
		}
		if t.BudgetReturnFor != "" {
			m.seen[returnKey(t.BudgetReturnFor, t.Date())] = struct{}{}
		}
	}
}

// FilterOutMaterializations returns the transactions that are not
// materialization entries.
func FilterOutMaterializations(txs []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.IsBudgetMaterialization {
			out = append(out, t)
		}
	}
	return out
}

// ExtractMaterializations returns only the materialization entries.
func ExtractMaterializations(txs []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for _, t := range txs {
		if t.IsBudgetMaterialization {
			out = append(out, t)
		}
	}
	return out
}
