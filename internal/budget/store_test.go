package budget

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/envelhq/envel/internal/model"
)

func newTestStore(kv *fakeKV, replica Replica, today string) *Store {
	return NewStore(kv, replica, StoreOptions{Now: fixedClock(today)})
}

func TestNormalize(t *testing.T) {
	t.Run("drops records without id or tag", func(t *testing.T) {
		if _, ok := Normalize(model.BudgetRecord{Tag: "#luz"}); ok {
			t.Error("record without id should be dropped")
		}
		if _, ok := Normalize(model.BudgetRecord{ID: "b1"}); ok {
			t.Error("record without tag should be dropped")
		}
	})

	t.Run("coerces enums and amounts", func(t *testing.T) {
		b, ok := Normalize(model.BudgetRecord{
			ID:           "b1",
			Tag:          "#luz",
			Type:         "weird",
			Status:       "unknown",
			InitialValue: -50,
			SpentValue:   30,
		})
		if !ok {
			t.Fatal("record should survive normalization")
		}
		if b.Type != model.BudgetAdHoc {
			t.Errorf("Type = %q, want ad-hoc default", b.Type)
		}
		if b.Status != model.BudgetActive {
			t.Errorf("Status = %q, want active default", b.Status)
		}
		if b.InitialValue != 0 {
			t.Errorf("negative InitialValue = %v, want 0", b.InitialValue)
		}
		if b.ReservedValue != 0 {
			t.Errorf("ReservedValue = %v, want max(0-30, 0) = 0", b.ReservedValue)
		}
	})
}

// Two active records for the same tag: the one whose window contains today
// wins, everything else is demoted to closed.
func TestEnforceSingleActivePerTag(t *testing.T) {
	today := model.MustDate("2025-02-10")
	list := []model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-01-01", "2025-01-31", 100),
		activeBudget("b2", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
	}

	stamp := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	out := EnforceSingleActivePerTag(list, today, stamp)

	if out[0].Status != model.BudgetClosed {
		t.Errorf("b1 status = %q, want closed", out[0].Status)
	}
	if !out[0].UpdatedAt.Equal(stamp) {
		t.Errorf("demoted UpdatedAt = %v, want the caller's clock", out[0].UpdatedAt)
	}
	if out[1].Status != model.BudgetActive {
		t.Errorf("b2 status = %q, want active", out[1].Status)
	}
	// Input not mutated.
	if list[0].Status != model.BudgetActive {
		t.Error("input slice was mutated")
	}
}

func TestEnforceSingleActiveNoCoverFallsBackToLatestStart(t *testing.T) {
	today := model.MustDate("2025-06-01")
	list := []model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-01-01", "2025-01-31", 100),
		activeBudget("b2", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
	}

	out := EnforceSingleActivePerTag(list, today, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	if out[0].Status != model.BudgetClosed || out[1].Status != model.BudgetActive {
		t.Fatalf("statuses = %q/%q, want closed/active (latest start wins)", out[0].Status, out[1].Status)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(kv, nil, "2025-02-10")

	in := []model.BudgetRecord{
		activeBudget("b1", "#mercado", model.BudgetRecurring, "2025-02-05", "2025-03-05", 500),
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store over the same KV reads back the persisted records.
	s2 := newTestStore(kv, nil, "2025-02-10")
	got := s2.Load()
	if len(got) != 1 {
		t.Fatalf("Load = %d records, want 1", len(got))
	}
	if got[0].ID != "b1" || got[0].InitialValue != 500 {
		t.Fatalf("Load = %+v", got[0])
	}

	// The returned slice is a defensive copy.
	got[0].Tag = "#mutated"
	if s2.Load()[0].Tag != "#mercado" {
		t.Error("Load returned a shared slice")
	}
}

// Save enforces the single-active invariant on every write, not only on
// conflict detection.
func TestSaveDedupesActives(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(kv, nil, "2025-02-10")

	err := s.Save([]model.BudgetRecord{
		activeBudget("b1", "#luz", model.BudgetAdHoc, "2025-01-01", "2025-01-31", 100),
		activeBudget("b2", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 100),
		{Tag: "#dropped"}, // no id: dropped by normalization
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.Load()
	if len(got) != 2 {
		t.Fatalf("Load = %d records, want 2", len(got))
	}
	actives := 0
	for _, b := range got {
		if b.IsActive() {
			actives++
		}
	}
	if actives != 1 {
		t.Fatalf("active records = %d, want 1", actives)
	}
}

func TestFindActiveByTag(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(kv, nil, "2025-02-10")

	_ = s.Save([]model.BudgetRecord{
		activeBudget("b1", "#mercado", model.BudgetRecurring, "2025-02-05", "2025-03-05", 500),
	})

	if b, ok := s.FindActiveByTag("#mercado"); !ok || b.ID != "b1" {
		t.Fatalf("FindActiveByTag = %+v, %v", b, ok)
	}
	if _, ok := s.FindActiveByTag("#luz"); ok {
		t.Fatal("unexpected active record for #luz")
	}
}

func TestReconcileCollapsesSemanticGroups(t *testing.T) {
	kv := newFakeKV()
	replica := newFakeReplica()
	s := newTestStore(kv, replica, "2025-02-10")

	older := activeBudget("local-1", "#mercado", model.BudgetRecurring, "2025-02-05", "2025-03-05", 500)
	older.UpdatedAt = time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC)
	localDoc, _ := json.Marshal([]model.BudgetRecord{older})
	if err := kv.Set(CollectionBudgets, localDoc); err != nil {
		t.Fatalf("seeding local store: %v", err)
	}

	// Remote copy of the same semantic cycle, newer, plus a remote-only record.
	newer := older
	newer.ID = "remote-1"
	newer.SpentValue = 120
	newer.UpdatedAt = time.Date(2025, 2, 9, 10, 0, 0, 0, time.UTC)
	remoteOnly := activeBudget("remote-2", "#luz", model.BudgetAdHoc, "2025-02-01", "2025-02-28", 80)
	data, _ := json.Marshal([]model.BudgetRecord{newer, remoteOnly})
	replica.setDoc(CollectionBudgets, data)

	merged, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged = %d records, want 2", len(merged))
	}

	byTag := map[string]model.BudgetRecord{}
	for _, b := range merged {
		byTag[b.Tag] = b
	}
	if got := byTag["#mercado"]; got.ID != "remote-1" || got.SpentValue != 120 {
		t.Fatalf("#mercado merged to %+v, want the newer remote copy", got)
	}
	if _, ok := byTag["#luz"]; !ok {
		t.Fatal("remote-only record missing after merge")
	}

	// Merged result was pushed back to the replica.
	if replica.saveCount() == 0 {
		t.Fatal("merged records were not written to the replica")
	}
}

// Equal timestamps resolve to the later arrival: remotes are merged after
// locals, so the remote copy wins.
func TestReconcileTieGoesToRemote(t *testing.T) {
	kv := newFakeKV()
	replica := newFakeReplica()
	s := newTestStore(kv, replica, "2025-02-10")

	at := time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC)
	local := activeBudget("local-1", "#mercado", model.BudgetRecurring, "2025-02-05", "2025-03-05", 500)
	local.UpdatedAt = at
	localDoc, _ := json.Marshal([]model.BudgetRecord{local})
	_ = kv.Set(CollectionBudgets, localDoc)

	remoteCopy := local
	remoteCopy.ID = "remote-1"
	data, _ := json.Marshal([]model.BudgetRecord{remoteCopy})
	replica.setDoc(CollectionBudgets, data)

	merged, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(merged) != 1 || merged[0].ID != "remote-1" {
		t.Fatalf("merged = %+v, want the remote copy on a timestamp tie", merged)
	}
}

func TestReconcileRemoteFailureLeavesLocalAuthoritative(t *testing.T) {
	kv := newFakeKV()
	replica := newFakeReplica()
	replica.loadErr = errors.New("replica down")
	s := newTestStore(kv, replica, "2025-02-10")

	local := activeBudget("b1", "#mercado", model.BudgetRecurring, "2025-02-05", "2025-03-05", 500)
	localDoc, _ := json.Marshal([]model.BudgetRecord{local})
	_ = kv.Set(CollectionBudgets, localDoc)

	merged, err := s.Reconcile(context.Background())
	if err == nil {
		t.Fatal("expected an error when the replica is unreachable")
	}
	if len(merged) != 1 || merged[0].ID != "b1" {
		t.Fatalf("merged = %+v, want untouched local records", merged)
	}
}

func TestMalformedLocalDocumentDegradesToEmpty(t *testing.T) {
	kv := newFakeKV()
	_ = kv.Set(CollectionBudgets, []byte("{not json"))
	s := newTestStore(kv, nil, "2025-02-10")

	if got := s.Load(); len(got) != 0 {
		t.Fatalf("Load over malformed document = %d records, want 0", len(got))
	}
}
