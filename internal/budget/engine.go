package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/envelhq/envel/internal/model"
)

// Engine composes the budget store, reservation calculator, cycle
// lifecycle and materializer over one local store and optional replica.
// It also owns ledger access so materialized entries land in the local
// ledger exactly once.
type Engine struct {
	store *Store
	mat   *Materializer
	local LocalKV
	log   zerolog.Logger
	now   func() time.Time
}

// Options configures an Engine.
type Options struct {
	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// NewEngine wires an engine over the given collaborators. replica may be
// nil, disabling all remote operations.
func NewEngine(local LocalKV, replica Replica, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store: NewStore(local, replica, StoreOptions{Logger: opts.Logger, Now: now}),
		mat:   NewMaterializer(),
		local: local,
		log:   opts.Logger,
		now:   now,
	}
}

// Today returns the current local calendar date.
func (e *Engine) Today() model.Date { return model.DateOf(e.now()) }

// Budgets returns all persisted budget records.
func (e *Engine) Budgets() []model.BudgetRecord { return e.store.Load() }

// SaveBudgets persists the list through normalization and deduplication.
func (e *Engine) SaveBudgets(list []model.BudgetRecord) error { return e.store.Save(list) }

// FindActiveByTag returns the active record for a tag, if any.
func (e *Engine) FindActiveByTag(tag string) (model.BudgetRecord, bool) {
	return e.store.FindActiveByTag(tag)
}

// ListActive returns all active records.
func (e *Engine) ListActive() []model.BudgetRecord { return e.store.ListActive() }

// Reconcile merges local budget records with the remote replica.
func (e *Engine) Reconcile(ctx context.Context) ([]model.BudgetRecord, error) {
	return e.store.Reconcile(ctx)
}

// HasReplica reports whether a remote replica is configured.
func (e *Engine) HasReplica() bool { return e.store.HasReplica() }

// Transactions returns the local ledger. Missing or malformed data
// degrades to an empty ledger.
func (e *Engine) Transactions() []model.Transaction {
	raw, err := e.local.Get(CollectionTransactions)
	if err != nil {
		return nil
	}
	var txs []model.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		e.log.Debug().Err(err).Msg("discarding malformed ledger document")
		return nil
	}
	return txs
}

// AppendTransactions appends entries to the local ledger.
func (e *Engine) AppendTransactions(entries []model.Transaction) error {
	if len(entries) == 0 {
		return nil
	}
	txs := append(e.Transactions(), entries...)
	data, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("budget: encoding ledger: %w", err)
	}
	if err := e.local.Set(CollectionTransactions, data); err != nil {
		return fmt.Errorf("budget: persisting ledger: %w", err)
	}
	return nil
}

// ReservedTotal computes the reservation projection for target against
// the persisted budgets and local ledger.
func (e *Engine) ReservedTotal(target model.Date, opts ProjectionOptions) float64 {
	return ReservedTotalForDate(e.store.Load(), e.Transactions(), target, opts)
}

// RebuildMaterializationCache reloads the materializer's idempotency
// cache from the local ledger.
func (e *Engine) RebuildMaterializationCache() {
	e.mat.RebuildCache(e.Transactions())
}

// GenerateMaterializations emits the materialization entries due as of
// today without persisting them. Most callers want Sweep instead.
func (e *Engine) GenerateMaterializations(txs []model.Transaction, today model.Date) []model.Transaction {
	return e.mat.Generate(e.store.Load(), txs, today)
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	At            model.Date `json:"at"`
	Created       int        `json:"created"`
	Closed        int        `json:"closed"`
	Materialized  int        `json:"materialized"`
	ReservedTotal float64    `json:"reserved_total"`
}

// Sweep runs the full day-rollover pass: ensure recurring cycles exist
// for today, materialize cycles that have started or ended, close expired
// cycles, refresh spend accounting, and reconcile with the replica. The
// result is valid even when an error is also returned.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	today := e.Today()
	txs := e.Transactions()
	e.mat.RebuildCache(txs)

	var firstErr error
	created, err := e.EnsureRecurring(txs, today)
	if err != nil {
		firstErr = err
	}

	// Materialize before closing so the return leg still sees the final
	// active state of cycles ending today.
	emitted := e.mat.Generate(e.store.Load(), txs, today)
	if len(emitted) > 0 {
		if err := e.AppendTransactions(emitted); err != nil && firstErr == nil {
			firstErr = err
		}
		txs = append(txs, emitted...)
	}

	closed, err := e.CloseExpired(txs, today)
	if err != nil && firstErr == nil {
		firstErr = err
	}

	if err := e.refreshActive(txs); err != nil && firstErr == nil {
		firstErr = err
	}

	if e.store.HasReplica() {
		if _, err := e.store.Reconcile(ctx); err != nil {
			// Remote divergence is tolerable; local state is authoritative.
			e.log.Warn().Err(err).Msg("replica reconcile failed during sweep")
		}
	}

	return SweepResult{
		At:            today,
		Created:       created,
		Closed:        closed,
		Materialized:  len(emitted),
		ReservedTotal: ReservedTotalForDate(e.store.Load(), txs, today, ProjectionOptions{}),
	}, firstErr
}

// refreshActive recomputes spend accounting for every active record.
func (e *Engine) refreshActive(txs []model.Transaction) error {
	budgets := e.store.Load()
	changed := false
	for i, b := range budgets {
		if !b.IsActive() {
			continue
		}
		nb := Recompute(b, txs)
		if nb.SpentValue != b.SpentValue || nb.ReservedValue != b.ReservedValue {
			nb.UpdatedAt = e.now()
			budgets[i] = nb
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.store.Save(budgets)
}
