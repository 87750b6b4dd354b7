package budget

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/envelhq/envel/internal/model"
	"github.com/envelhq/envel/internal/remote"
)

// fakeKV is an in-memory LocalKV for tests.
type fakeKV struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{docs: make(map[string][]byte)}
}

func (f *fakeKV) Get(collection string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[collection]; ok {
		return d, nil
	}
	return nil, errors.New("fakeKV: not found")
}

func (f *fakeKV) Set(collection string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[collection] = append([]byte(nil), body...)
	return nil
}

// fakeReplica is an in-memory Replica for tests.
type fakeReplica struct {
	mu      sync.Mutex
	docs    map[string][]byte
	loadErr error
	saves   int
}

func newFakeReplica() *fakeReplica {
	return &fakeReplica{docs: make(map[string][]byte)}
}

func (f *fakeReplica) Load(_ context.Context, collection string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if d, ok := f.docs[collection]; ok {
		return d, nil
	}
	return nil, remote.ErrNotFound
}

func (f *fakeReplica) Save(_ context.Context, collection string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[collection] = append([]byte(nil), body...)
	f.saves++
	return nil
}

func (f *fakeReplica) setDoc(collection string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[collection] = body
}

func (f *fakeReplica) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// fixedClock returns a clock pinned to midday local time on the given date.
func fixedClock(date string) func() time.Time {
	d := model.MustDate(date)
	return func() time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.Local)
	}
}

func activeBudget(id, tag string, typ model.BudgetType, start, end string, initial float64) model.BudgetRecord {
	return model.BudgetRecord{
		ID:           id,
		Tag:          tag,
		Type:         typ,
		Status:       model.BudgetActive,
		StartDate:    model.MustDate(start),
		EndDate:      model.MustDate(end),
		InitialValue: initial,
		UpdatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func spend(id, tag, date string, val float64) model.Transaction {
	return model.Transaction{
		ID:        id,
		Val:       val,
		OpDate:    model.MustDate(date),
		BudgetTag: tag,
	}
}

func recurringMaster(id, tag, date, code string, val float64) model.Transaction {
	return model.Transaction{
		ID:         id,
		Val:        val,
		OpDate:     model.MustDate(date),
		Recurrence: code,
		BudgetTag:  tag,
	}
}
