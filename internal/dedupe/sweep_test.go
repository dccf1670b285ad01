package dedupe

import (
	"testing"

	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/match"
)

func testSweeper() *Sweeper {
	return NewSweeper(match.NewClassifier(match.DefaultThresholds()), zerolog.Nop())
}

func TestSweeper_Screen(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: 1, Name: "SF Swim Academy Inc.", Categories: []string{"swimming", "sports"}},
		{ID: 2, Name: "Mission Pottery Lab", Categories: []string{"arts"}},
	}

	candidate, err := match.NewCandidate("SF Swim Academy", []string{"swimming"})
	if err != nil {
		t.Fatalf("unexpected candidate error: %v", err)
	}

	matches := testSweeper().Screen(candidate, records)
	if len(matches) != 1 || matches[0].ID != 1 {
		t.Fatalf("unexpected screening matches: %+v", matches)
	}
}

func TestSweeper_Screen_FiltersMergedRecords(t *testing.T) {
	t.Parallel()

	canonicalID := int64(1)
	records := []Record{
		{ID: 1, Name: "SF Swim Academy"},
		{ID: 2, Name: "SF Swim Academy Inc.", MergedInto: &canonicalID},
	}

	candidate, err := match.NewCandidate("SF Swim Academy", nil)
	if err != nil {
		t.Fatalf("unexpected candidate error: %v", err)
	}

	matches := testSweeper().Screen(candidate, records)
	if len(matches) != 1 || matches[0].ID != 1 {
		t.Fatalf("merged-away record must not be screened, got %+v", matches)
	}
}

func TestSweeper_Sweep_TransitiveGrouping(t *testing.T) {
	t.Parallel()

	// A ~ B via significant prefix, B ~ C via exact key; A and C may never be
	// judged directly but still belong in one group.
	records := []Record{
		{ID: 1, Name: "Bright Beginnings", Categories: []string{"daycare"}},
		{ID: 2, Name: "Bright Beginnings Preschool", Categories: []string{"preschool"}},
		{ID: 3, Name: "Bright Beginnings Preschool!!", Categories: []string{"preschool"}},
		{ID: 4, Name: "Mission Pottery Lab", Categories: []string{"arts"}},
	}

	groups := testSweeper().Sweep(records)
	if len(groups) != 1 {
		t.Fatalf("expected one duplicate group, got %d", len(groups))
	}
	if got := len(groups[0].Members()); got != 3 {
		t.Fatalf("expected transitive group of 3, got %d members", got)
	}
}

func TestSweeper_Sweep_ExcludesMergedAndSingletons(t *testing.T) {
	t.Parallel()

	canonicalID := int64(1)
	records := []Record{
		{ID: 1, Name: "Chess Club"},
		{ID: 2, Name: "Chess Club", MergedInto: &canonicalID},
		{ID: 3, Name: "Mission Pottery Lab"},
	}

	groups := testSweeper().Sweep(records)
	if len(groups) != 0 {
		t.Fatalf("expected no groups once merged record is filtered, got %+v", groups)
	}
}

func TestSweeper_Sweep_CanonicalByRichness(t *testing.T) {
	t.Parallel()

	records := []Record{
		{
			ID:   10,
			Name: "SF Swim Academy Inc.",
			Fields: map[string]FieldValue{
				"description": StringField("d"),
			},
		},
		{
			ID:         11,
			Name:       "SF Swim Academy",
			Categories: []string{"swimming"},
			Fields: map[string]FieldValue{
				"description":  StringField("d"),
				"neighborhood": StringField("Mission District"),
				"price_min":    NumberField(100),
			},
		},
	}

	groups := testSweeper().Sweep(records)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	if groups[0].Canonical.ID != 11 {
		t.Fatalf("expected richer record 11 as canonical, got %d", groups[0].Canonical.ID)
	}
}

func TestSuggestValueMerges(t *testing.T) {
	t.Parallel()

	usage := map[string]int64{
		"Mission District": 40,
		"Mission Distrct":  3,
		"mission district": 5,
		"Sunset":           12,
	}

	groups := SuggestValueMerges(usage, match.NewClassifier(match.DefaultThresholds()))
	if len(groups) != 1 {
		t.Fatalf("expected one suggestion group, got %+v", groups)
	}
	group := groups[0]
	if group.Canonical != "Mission District" {
		t.Fatalf("unexpected canonical value: %q", group.Canonical)
	}
	if len(group.Variants) != 2 {
		t.Fatalf("unexpected variants: %+v", group.Variants)
	}
	if group.Usage["Mission District"] != 40 {
		t.Fatalf("usage counts not carried: %+v", group.Usage)
	}
}

func TestSuggestValueMerges_Deterministic(t *testing.T) {
	t.Parallel()

	usage := map[string]int64{
		"SoMa":            7,
		"South of Market": 7,
	}
	classifier := match.NewClassifier(match.DefaultThresholds())

	first := SuggestValueMerges(usage, classifier)
	second := SuggestValueMerges(usage, classifier)
	if len(first) != len(second) {
		t.Fatalf("suggestion runs disagree: %d vs %d groups", len(first), len(second))
	}
	for i := range first {
		if first[i].Canonical != second[i].Canonical {
			t.Fatalf("canonical differs across runs: %q vs %q", first[i].Canonical, second[i].Canonical)
		}
	}
}
