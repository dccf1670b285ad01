package db

import (
	"testing"
	"time"

	"sproutdir.app/sproutdir/internal/dedupe"
)

func stringPtr(s string) *string  { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestRecordFromProgramRow(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := programRow{
		ProgramID:    7,
		ProgramUUID:  "3f1c9a34-1111-2222-3333-444455556666",
		Name:         "SF Swim Academy",
		Description:  "Lessons for ages 3-12",
		Categories:   []byte(`["swimming","sports"]`),
		Neighborhood: stringPtr("Mission District"),
		PriceMin:     floatPtr(120),
		Language:     "en",
		CreatedAt:    created,
	}

	record := recordFromProgramRow(row)
	if record.ID != 7 || record.Name != "SF Swim Academy" {
		t.Fatalf("unexpected record identity: %+v", record)
	}
	if len(record.Categories) != 2 {
		t.Fatalf("categories not decoded: %v", record.Categories)
	}
	if !record.CreatedAt.Equal(created) {
		t.Fatalf("created_at not carried: %v", record.CreatedAt)
	}
	if !record.Live() {
		t.Fatalf("record without merged_into must be live")
	}

	// description + neighborhood + price_min + language, plus name and
	// categories counted by the ranker itself.
	if got := dedupe.Richness(record); got != 6 {
		t.Fatalf("unexpected richness: got %d want 6", got)
	}
}

func TestRecordFromProgramRow_LanguageDefaultNotCounted(t *testing.T) {
	t.Parallel()

	row := programRow{ProgramID: 1, Name: "Chess Club", Language: "und"}
	record := recordFromProgramRow(row)
	if record.Fields["language"].Populated() {
		t.Fatalf("und language must not count toward richness")
	}
}

func TestRecordFromProgramRow_MergedAway(t *testing.T) {
	t.Parallel()

	canonical := int64(3)
	row := programRow{ProgramID: 9, Name: "Chess Club SF", MergedInto: &canonical}
	record := recordFromProgramRow(row)
	if record.Live() {
		t.Fatalf("merged record must not be live")
	}
}

func TestDecodeStringList(t *testing.T) {
	t.Parallel()

	if got := decodeStringList([]byte(`["mon","wed"]`)); len(got) != 2 {
		t.Fatalf("unexpected list: %v", got)
	}
	if got := decodeStringList(nil); got != nil {
		t.Fatalf("expected nil for empty payload, got %v", got)
	}
	if got := decodeStringList([]byte(`{"bad":1}`)); got != nil {
		t.Fatalf("expected nil for malformed payload, got %v", got)
	}
}

func TestValueFields(t *testing.T) {
	t.Parallel()

	names := ValueFields()
	found := map[string]bool{}
	for _, name := range names {
		found[name] = true
	}
	if !found["neighborhood"] || !found["price_unit"] {
		t.Fatalf("expected neighborhood and price_unit to be mergeable, got %v", names)
	}
}
