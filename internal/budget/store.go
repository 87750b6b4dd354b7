// Package budget implements the budget cycle and reservation engine:
// record storage and reconciliation, reservation projection, cycle
// lifecycle, and materialization into ledger transactions.
package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/envelhq/envel/internal/model"
	"github.com/envelhq/envel/internal/remote"
)

// Collection names shared between local storage and the remote replica.
const (
	CollectionBudgets      = "budgets"
	CollectionTransactions = "transactions"
)

const remotePushTimeout = 15 * time.Second

// LocalKV is the local persistence collaborator: a synchronous document
// store keyed by collection name.
type LocalKV interface {
	Get(collection string) ([]byte, error)
	Set(collection string, body []byte) error
}

// Replica is the remote replica collaborator. A missing document is
// reported as an error satisfying errors.Is(err, remote.ErrNotFound).
type Replica interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, body []byte) error
}

// Store normalizes, persists, deduplicates and reconciles budget records.
// It owns its in-memory cache; local storage is authoritative and the
// replica push is best-effort.
type Store struct {
	local  LocalKV
	remote Replica // nil when no replica is configured
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache []model.BudgetRecord // nil until first load
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// NewStore creates a budget store over the given collaborators. replica
// may be nil.
func NewStore(local LocalKV, replica Replica, opts StoreOptions) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		local:  local,
		remote: replica,
		log:    opts.Logger,
		now:    now,
	}
}

// HasReplica reports whether a remote replica is configured.
func (s *Store) HasReplica() bool { return s.remote != nil }

func (s *Store) today() model.Date { return model.DateOf(s.now()) }

// Normalize coerces a raw record into a valid one. It returns false when
// the record is structurally unusable (missing id or tag) and must be
// dropped, as opposed to merely defaulted.
func Normalize(raw model.BudgetRecord) (model.BudgetRecord, bool) {
	if raw.ID == "" || raw.Tag == "" {
		return model.BudgetRecord{}, false
	}

	b := raw
	b.Type = model.NormalizeBudgetType(string(raw.Type))
	b.Status = model.NormalizeBudgetStatus(string(raw.Status))
	b.InitialValue = sanitizeAmount(raw.InitialValue)
	b.SpentValue = sanitizeAmount(raw.SpentValue)
	b.ReservedValue = math.Max(b.InitialValue-b.SpentValue, 0)
	return b, true
}

// sanitizeAmount maps NaN, infinities and negative amounts to 0.
func sanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// EnforceSingleActivePerTag demotes all but one active record per tag to
// closed, stamping demoted records with now. Among conflicting actives
// the subset whose window contains today is preferred (falling back to
// the whole group), and the record with the latest start date wins.
// Returns a new slice; the input is not mutated.
func EnforceSingleActivePerTag(list []model.BudgetRecord, today model.Date, now time.Time) []model.BudgetRecord {
	out := make([]model.BudgetRecord, len(list))
	copy(out, list)

	byTag := make(map[string][]int)
	for i, b := range out {
		if b.IsActive() {
			byTag[b.Tag] = append(byTag[b.Tag], i)
		}
	}

	for _, actives := range byTag {
		if len(actives) < 2 {
			continue
		}

		candidates := make([]int, 0, len(actives))
		for _, i := range actives {
			if out[i].Covers(today) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			candidates = actives
		}

		winner := candidates[0]
		for _, i := range candidates[1:] {
			if out[i].StartDate.String() > out[winner].StartDate.String() {
				winner = i
			}
		}

		for _, i := range actives {
			if i == winner {
				continue
			}
			out[i].Status = model.BudgetClosed
			out[i].UpdatedAt = now
		}
	}
	return out
}

// Save normalizes and deduplicates the list, replaces the cache, persists
// locally, and pushes to the replica without waiting for it. Only a local
// persistence failure is returned.
func (s *Store) Save(list []model.BudgetRecord) error {
	normalized := make([]model.BudgetRecord, 0, len(list))
	for _, raw := range list {
		if b, ok := Normalize(raw); ok {
			normalized = append(normalized, b)
		}
	}
	deduped := EnforceSingleActivePerTag(normalized, s.today(), s.now())

	s.mu.Lock()
	s.cache = cloneBudgets(deduped)
	s.mu.Unlock()

	data, err := json.Marshal(deduped)
	if err != nil {
		return fmt.Errorf("budget: encoding records: %w", err)
	}
	if err := s.local.Set(CollectionBudgets, data); err != nil {
		return fmt.Errorf("budget: persisting records: %w", err)
	}

	s.pushToReplica(data)
	return nil
}

// pushToReplica fires a best-effort push of the encoded records. Failures
// are logged and swallowed; local state stays authoritative.
func (s *Store) pushToReplica(data []byte) {
	if s.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), remotePushTimeout)
		defer cancel()
		if err := s.remote.Save(ctx, CollectionBudgets, data); err != nil {
			s.log.Debug().Err(err).Msg("budget push to replica failed")
		}
	}()
}

// Load returns the cached records, reading and normalizing local storage
// on first use. Callers receive a defensive copy. Missing or malformed
// local data degrades to an empty list.
func (s *Store) Load() []model.BudgetRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache == nil {
		raw, err := s.local.Get(CollectionBudgets)
		if err != nil {
			s.cache = []model.BudgetRecord{}
		} else {
			s.cache = decodeBudgets(raw, s.log)
		}
	}
	return cloneBudgets(s.cache)
}

// FindActiveByTag returns the active record for a tag, if any.
func (s *Store) FindActiveByTag(tag string) (model.BudgetRecord, bool) {
	for _, b := range s.Load() {
		if b.IsActive() && b.Tag == tag {
			return b, true
		}
	}
	return model.BudgetRecord{}, false
}

// ListActive returns all active records.
func (s *Store) ListActive() []model.BudgetRecord {
	var out []model.BudgetRecord
	for _, b := range s.Load() {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	return out
}

// Reconcile merges local records with the replica. Within each semantic
// key group the record with the latest UpdatedAt wins, ties going to the
// later arrival (locals are visited first, then remotes). The merged
// result is persisted on both sides and returned; it is valid even when
// an error is also returned.
func (s *Store) Reconcile(ctx context.Context) ([]model.BudgetRecord, error) {
	local := s.Load()
	if s.remote == nil {
		return local, nil
	}

	var remoteRecs []model.BudgetRecord
	raw, err := s.remote.Load(ctx, CollectionBudgets)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		// Replica has never been written; merge against nothing.
	case err != nil:
		return local, fmt.Errorf("budget: loading replica: %w", err)
	default:
		remoteRecs = decodeBudgets(raw, s.log)
	}

	merged := mergeBudgets(local, remoteRecs)
	merged = EnforceSingleActivePerTag(merged, s.today(), s.now())

	s.mu.Lock()
	s.cache = cloneBudgets(merged)
	s.mu.Unlock()

	data, err := json.Marshal(merged)
	if err != nil {
		return merged, fmt.Errorf("budget: encoding merged records: %w", err)
	}

	var firstErr error
	if err := s.local.Set(CollectionBudgets, data); err != nil {
		firstErr = fmt.Errorf("budget: persisting merged records: %w", err)
	}
	if err := s.remote.Save(ctx, CollectionBudgets, data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("budget: pushing merged records: %w", err)
	}
	return merged, firstErr
}

// mergeBudgets unions two record lists, collapsing each semantic key group
// to the record with the latest UpdatedAt. Equal timestamps resolve to the
// later list position.
func mergeBudgets(local, replica []model.BudgetRecord) []model.BudgetRecord {
	byKey := make(map[string]model.BudgetRecord)
	order := make([]string, 0, len(local)+len(replica))

	for _, b := range append(cloneBudgets(local), replica...) {
		key := b.SemanticKey()
		existing, ok := byKey[key]
		if !ok {
			order = append(order, key)
			byKey[key] = b
			continue
		}
		if !b.UpdatedAt.Before(existing.UpdatedAt) {
			byKey[key] = b
		}
	}

	out := make([]model.BudgetRecord, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// decodeBudgets parses a persisted record array, dropping records that
// fail normalization. Malformed JSON degrades to an empty list.
func decodeBudgets(raw []byte, log zerolog.Logger) []model.BudgetRecord {
	var parsed []model.BudgetRecord
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Debug().Err(err).Msg("discarding malformed budget document")
		return []model.BudgetRecord{}
	}

	out := make([]model.BudgetRecord, 0, len(parsed))
	for _, raw := range parsed {
		if b, ok := Normalize(raw); ok {
			out = append(out, b)
		}
	}
	return out
}

func cloneBudgets(list []model.BudgetRecord) []model.BudgetRecord {
	out := make([]model.BudgetRecord, len(list))
	copy(out, list)
	return out
}
