package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeStore implements Store and EventRecorder in memory.
type fakeStore struct {
	mu sync.Mutex

	// merged maps variant id -> canonical id; dependents counts the
	// dependent rows still attached to each record id; values maps
	// field -> value -> row count.
	merged     map[int64]int64
	deleted    map[int64]bool
	dependents map[int64]int64
	values     map[string]map[string]int64
	events     []Outcome

	reassignCalls int
	failReassign  map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		merged:       make(map[int64]int64),
		deleted:      make(map[int64]bool),
		dependents:   make(map[int64]int64),
		values:       make(map[string]map[string]int64),
		failReassign: make(map[int64]error),
	}
}

func (f *fakeStore) ReassignDependents(_ context.Context, oldID, newID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reassignCalls++
	if err := f.failReassign[oldID]; err != nil {
		return 0, err
	}
	moved := f.dependents[oldID]
	f.dependents[newID] += moved
	f.dependents[oldID] = 0
	return moved, nil
}

func (f *fakeStore) SoftMarkMerged(_ context.Context, variantID, canonicalID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, already := f.merged[variantID]; already {
		return false, nil
	}
	f.merged[variantID] = canonicalID
	return true, nil
}

func (f *fakeStore) HardDelete(_ context.Context, variantID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleted[variantID] {
		return false, nil
	}
	f.deleted[variantID] = true
	return true, nil
}

func (f *fakeStore) UpdateValue(_ context.Context, field, oldValue, newValue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.values[field]
	count := rows[oldValue]
	if count > 0 {
		rows[newValue] += count
		delete(rows, oldValue)
	}
	return count, nil
}

func (f *fakeStore) RecordMergeEvent(_ context.Context, outcome Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, outcome)
	return nil
}

func testExecutor(store Store) *Executor {
	return NewExecutor(store, zerolog.Nop(), ExecutorOptions{Parallelism: 2})
}

func swimGroup() Group {
	return Group{
		Canonical: Record{ID: 1, Name: "SF Swim Academy"},
		Variants: []Record{
			{ID: 2, Name: "SF Swim Academy Inc."},
			{ID: 3, Name: "SF Swim Academy LLC"},
		},
	}
}

func TestConsolidateRecords_SoftMark(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.dependents[2] = 4
	store.dependents[3] = 1

	outcomes, err := testExecutor(store).ConsolidateRecords(context.Background(), []Group{swimGroup()}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected one outcome per variant, got %d", len(outcomes))
	}
	for _, outcome := range outcomes {
		if !outcome.Success || outcome.NoOp {
			t.Fatalf("expected clean success, got %+v", outcome)
		}
	}
	if store.merged[2] != 1 || store.merged[3] != 1 {
		t.Fatalf("variants not marked merged: %+v", store.merged)
	}
	if store.dependents[1] != 5 {
		t.Fatalf("dependents not re-pointed to canonical: %+v", store.dependents)
	}
	if len(store.events) != 2 {
		t.Fatalf("expected merge events recorded, got %d", len(store.events))
	}
}

func TestConsolidateRecords_HardDelete(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	group := Group{
		Canonical: Record{ID: 1, Name: "Chess Club"},
		Variants:  []Record{{ID: 2, Name: "Chess Club SF"}},
	}

	outcomes, err := testExecutor(store).ConsolidateRecords(context.Background(), []Group{group}, ConsolidateOptions{Mode: ModeHardDelete, Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Success {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if !store.deleted[2] {
		t.Fatalf("variant not hard deleted")
	}
	if len(store.merged) != 0 {
		t.Fatalf("hard delete must not soft-mark: %+v", store.merged)
	}
}

func TestConsolidateRecords_RequiresConfirmation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.dependents[2] = 4

	_, err := testExecutor(store).ConsolidateRecords(context.Background(), []Group{swimGroup()}, ConsolidateOptions{})
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if store.reassignCalls != 0 {
		t.Fatalf("no write may happen before the confirmation check, saw %d reassign calls", store.reassignCalls)
	}
}

func TestConsolidateRecords_IdempotentRerun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.dependents[2] = 4
	executor := testExecutor(store)

	first, err := executor.ConsolidateRecords(context.Background(), []Group{swimGroup()}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	callsAfterFirst := store.reassignCalls

	// A re-discovered group arrives with the variants now marked merged, per
	// the live-candidate invariant.
	canonicalID := int64(1)
	rerun := swimGroup()
	for i := range rerun.Variants {
		rerun.Variants[i].MergedInto = &canonicalID
	}

	second, err := executor.ConsolidateRecords(context.Background(), []Group{rerun}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error on rerun: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("rerun outcome count mismatch: %d vs %d", len(second), len(first))
	}
	for _, outcome := range second {
		if !outcome.Success || !outcome.NoOp {
			t.Fatalf("rerun must be success-no-op, got %+v", outcome)
		}
	}
	if store.reassignCalls != callsAfterFirst {
		t.Fatalf("rerun performed %d extra dependent writes", store.reassignCalls-callsAfterFirst)
	}
}

func TestConsolidateRecords_PartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.dependents[2] = 4
	store.dependents[3] = 2
	store.failReassign[2] = fmt.Errorf("fk constraint violated")

	outcomes, err := testExecutor(store).ConsolidateRecords(context.Background(), []Group{swimGroup()}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("batch must not abort on member failure: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected both members reported, got %d", len(outcomes))
	}

	var failed, succeeded int
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
		} else {
			failed++
			if outcome.Message == "" {
				t.Fatalf("failed outcome must carry a message: %+v", outcome)
			}
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Fatalf("expected one failure and one success, got failed=%d succeeded=%d", failed, succeeded)
	}
	if _, marked := store.merged[2]; marked {
		t.Fatalf("variant whose reassign failed must not be marked merged")
	}
}

func TestConsolidateRecords_CancelledBetweenGroups(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := testExecutor(store).ConsolidateRecords(ctx, []Group{swimGroup()}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, outcome := range outcomes {
		if outcome.Success {
			t.Fatalf("cancelled group must not report success: %+v", outcome)
		}
	}
	if store.reassignCalls != 0 {
		t.Fatalf("cancelled batch must not write, saw %d reassign calls", store.reassignCalls)
	}
}

func TestConsolidateValue(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.values["neighborhood"] = map[string]int64{
		"mission":          6,
		"The Mission":      3,
		"Mission District": 40,
	}
	executor := testExecutor(store)

	outcomes, err := executor.ConsolidateValue(context.Background(), "neighborhood", "Mission District", []string{"mission", "The Mission"}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total int64
	for _, outcome := range outcomes {
		if !outcome.Success {
			t.Fatalf("unexpected failure: %+v", outcome)
		}
		total += outcome.RowsUpdated
	}
	if total != 9 {
		t.Fatalf("unexpected updated row count: got %d want 9", total)
	}
	if store.values["neighborhood"]["Mission District"] != 49 {
		t.Fatalf("canonical rows not accumulated: %+v", store.values["neighborhood"])
	}

	// Second run is naturally idempotent: nothing left to update.
	rerun, err := executor.ConsolidateValue(context.Background(), "neighborhood", "Mission District", []string{"mission", "The Mission"}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected rerun error: %v", err)
	}
	for _, outcome := range rerun {
		if outcome.RowsUpdated != 0 {
			t.Fatalf("rerun updated rows: %+v", outcome)
		}
	}
}

func TestConsolidateValue_RequiresConfirmation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	_, err := testExecutor(store).ConsolidateValue(context.Background(), "neighborhood", "Mission District", []string{"mission"}, ConsolidateOptions{})
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
}

func TestConsolidateRecords_SkipsCanonicalInVariants(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	group := Group{
		Canonical: Record{ID: 1, Name: "Chess Club"},
		Variants:  []Record{{ID: 1, Name: "Chess Club"}},
	}

	outcomes, err := testExecutor(store).ConsolidateRecords(context.Background(), []Group{group}, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].NoOp || !outcomes[0].Success {
		t.Fatalf("self-merge must be a success-no-op, got %+v", outcomes)
	}
	if store.reassignCalls != 0 {
		t.Fatalf("self-merge must not write")
	}
}
