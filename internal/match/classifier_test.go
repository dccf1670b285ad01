package match

import "testing"

func TestClassifier_RuleOrder(t *testing.T) {
	t.Parallel()

	classifier := NewClassifier(DefaultThresholds())

	cases := []struct {
		name   string
		result Similarity
		want   bool
	}{
		{
			name:   "significant prefix wins regardless of other signals",
			result: Similarity{HasSignificantPrefix: true},
			want:   true,
		},
		{
			name:   "containment with long shorter name",
			result: Similarity{ContainsMatch: true, ShorterLen: 16},
			want:   true,
		},
		{
			name:   "containment with medium name needs category agreement",
			result: Similarity{ContainsMatch: true, ShorterLen: 12, CategoryOverlap: 0.5},
			want:   true,
		},
		{
			name:   "containment with medium name and no categories",
			result: Similarity{ContainsMatch: true, ShorterLen: 12},
			want:   false,
		},
		{
			name:   "containment with short name is never enough",
			result: Similarity{ContainsMatch: true, ShorterLen: 3, CategoryOverlap: 1},
			want:   false,
		},
		{
			name:   "similarity with category agreement uses the lower bar",
			result: Similarity{Similarity: 0.70, CategoryOverlap: 0.5},
			want:   true,
		},
		{
			name:   "similarity alone needs the higher bar",
			result: Similarity{Similarity: 0.70},
			want:   false,
		},
		{
			name:   "high similarity alone",
			result: Similarity{Similarity: 0.80},
			want:   true,
		},
		{
			name:   "no signal",
			result: Similarity{},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifier.IsDuplicate(tc.result); got != tc.want {
				t.Fatalf("unexpected verdict: got %v want %v", got, tc.want)
			}
		})
	}
}

// Raising category overlap while similarity stays at 0.70 may only flip the
// verdict from false to true, never true to false.
func TestClassifier_CategoryOverlapMonotonic(t *testing.T) {
	t.Parallel()

	classifier := NewClassifier(DefaultThresholds())
	previous := false
	for overlap := 0.0; overlap <= 1.0; overlap += 0.05 {
		verdict := classifier.IsDuplicate(Similarity{Similarity: 0.70, CategoryOverlap: overlap})
		if previous && !verdict {
			t.Fatalf("verdict flipped true->false at overlap %f", overlap)
		}
		previous = verdict
	}
	if !previous {
		t.Fatalf("expected verdict to become true once overlap crosses the threshold")
	}
}

func TestClassifier_Scenarios(t *testing.T) {
	t.Parallel()

	classifier := NewClassifier(DefaultThresholds())

	swimA := mustCandidate(t, "SF Swim Academy", "swimming")
	swimB := mustCandidate(t, "SF Swim Academy Inc.", "swimming", "sports")
	if result, dup := classifier.Match(swimA, swimB); !dup {
		t.Fatalf("expected swim academy pair to be duplicate, result=%+v", result)
	}

	art := mustCandidate(t, "Art")
	cartwright := mustCandidate(t, "Cartwright Studio")
	if result, dup := classifier.Match(art, cartwright); dup {
		t.Fatalf("expected short containment to be rejected, result=%+v", result)
	}

	bright := mustCandidate(t, "Bright Beginnings", "daycare")
	brightPre := mustCandidate(t, "Bright Beginnings Preschool", "preschool")
	if result, dup := classifier.Match(bright, brightPre); !dup {
		t.Fatalf("expected long joined prefix to be duplicate despite disjoint categories, result=%+v", result)
	}
}

func TestNewClassifier_FillsDefaults(t *testing.T) {
	t.Parallel()

	classifier := NewClassifier(Thresholds{Similarity: 0.9})
	got := classifier.Thresholds()
	if got.Similarity != 0.9 {
		t.Fatalf("explicit threshold overridden: got %f", got.Similarity)
	}
	if got.SimilarityWithCategory != 0.65 || got.CategoryOverlap != 0.3 {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.ContainmentMinLength != 10 || got.ContainmentStrongLength != 15 {
		t.Fatalf("containment defaults not applied: %+v", got)
	}
}
