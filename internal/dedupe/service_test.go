package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/match"
)

type fakeCatalog struct {
	records []Record
	usage   map[string]int64
}

func (c *fakeCatalog) FetchLiveRecords(_ context.Context) ([]Record, error) {
	live := make([]Record, 0, len(c.records))
	for _, record := range c.records {
		if record.Live() {
			live = append(live, record)
		}
	}
	return live, nil
}

func (c *fakeCatalog) FetchRecordsByUUID(_ context.Context, uuids []string) ([]Record, error) {
	wanted := make(map[string]bool, len(uuids))
	for _, id := range uuids {
		wanted[id] = true
	}
	var found []Record
	for _, record := range c.records {
		if wanted[record.UUID] {
			found = append(found, record)
		}
	}
	return found, nil
}

func (c *fakeCatalog) FetchValueUsage(_ context.Context, _ string) (map[string]int64, error) {
	return c.usage, nil
}

func newServiceForTest(catalog *fakeCatalog, store Store) *Service {
	return NewService(catalog, store, match.NewClassifier(match.DefaultThresholds()), zerolog.Nop(), ExecutorOptions{})
}

func TestServiceScreenForDuplicates(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{records: []Record{
		{ID: 1, UUID: "uuid-1", Name: "Kids Art Studio", Categories: []string{"art"}, CreatedAt: time.Now()},
		{ID: 2, UUID: "uuid-2", Name: "Mission Swim School", Categories: []string{"swimming"}, CreatedAt: time.Now()},
	}}
	service := newServiceForTest(catalog, newFakeStore())

	matches, err := service.ScreenForDuplicates(context.Background(), "Kids' Art Studio!!", []string{"art"})
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != 1 {
		t.Fatalf("unexpected matches: %v", matches)
	}
}

func TestServiceResolveGroup(t *testing.T) {
	t.Parallel()

	merged := int64(1)
	catalog := &fakeCatalog{records: []Record{
		{ID: 1, UUID: "uuid-1", Name: "Canonical"},
		{ID: 2, UUID: "uuid-2", Name: "Variant"},
		{ID: 3, UUID: "uuid-3", Name: "Already merged", MergedInto: &merged},
	}}
	service := newServiceForTest(catalog, newFakeStore())

	group, err := service.ResolveGroup(context.Background(), "uuid-1", []string{"uuid-2", "uuid-3"})
	if err != nil {
		t.Fatalf("resolve group: %v", err)
	}
	if group.Canonical.ID != 1 {
		t.Fatalf("unexpected canonical: %+v", group.Canonical)
	}
	// The merged variant stays so a re-run reports it as a no-op.
	if len(group.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", group.Variants)
	}
}

func TestServiceResolveGroup_MergedCanonicalRejected(t *testing.T) {
	t.Parallel()

	merged := int64(2)
	catalog := &fakeCatalog{records: []Record{
		{ID: 1, UUID: "uuid-1", Name: "Gone", MergedInto: &merged},
		{ID: 2, UUID: "uuid-2", Name: "Survivor"},
	}}
	service := newServiceForTest(catalog, newFakeStore())

	if _, err := service.ResolveGroup(context.Background(), "uuid-1", []string{"uuid-2"}); err == nil {
		t.Fatalf("expected merged canonical to be rejected")
	}
}

func TestServiceResolveGroup_SelfMergeRejected(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{records: []Record{
		{ID: 1, UUID: "uuid-1", Name: "Only one"},
	}}
	service := newServiceForTest(catalog, newFakeStore())

	if _, err := service.ResolveGroup(context.Background(), "uuid-1", []string{"uuid-1"}); err == nil {
		t.Fatalf("expected group with no distinct variants to be rejected")
	}
}

func TestServiceEndToEndMerge(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{records: []Record{
		{ID: 1, UUID: "uuid-1", Name: "SF Swim Academy", Categories: []string{"swimming"}, Fields: map[string]FieldValue{
			"neighborhood": StringField("Mission District"),
		}},
		{ID: 2, UUID: "uuid-2", Name: "SF Swim Academy at Balboa Pool", Categories: []string{"swimming"}},
	}}
	store := newFakeStore()
	service := newServiceForTest(catalog, store)

	ctx := context.Background()
	groups, err := service.SweepForDuplicateGroups(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected one duplicate group, got %v", groups)
	}
	if groups[0].Canonical.ID != 1 {
		t.Fatalf("expected richer record 1 as canonical, got %d", groups[0].Canonical.ID)
	}

	outcomes, err := service.ConsolidateRecords(ctx, groups, ConsolidateOptions{Confirmed: true})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Success || outcomes[0].NoOp {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if store.merged[2] != 1 {
		t.Fatalf("expected record 2 merged into 1, got %v", store.merged)
	}
}
