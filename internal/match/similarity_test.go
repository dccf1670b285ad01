package match

import (
	"math"
	"testing"
)

func mustCandidate(t *testing.T, name string, categories ...string) Candidate {
	t.Helper()
	candidate, err := NewCandidate(name, categories)
	if err != nil {
		t.Fatalf("unexpected candidate error for %q: %v", name, err)
	}
	return candidate
}

func TestScore_Symmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]Candidate{
		{mustCandidate(t, "SF Swim Academy", "swimming"), mustCandidate(t, "SF Swim Academy Inc.", "swimming", "sports")},
		{mustCandidate(t, "Art"), mustCandidate(t, "Cartwright Studio")},
		{mustCandidate(t, "Mission Science Workshop"), mustCandidate(t, "Mission Scince Workshop")},
	}
	for _, pair := range pairs {
		ab := Score(pair[0], pair[1])
		ba := Score(pair[1], pair[0])
		if ab.Similarity != ba.Similarity {
			t.Fatalf("similarity not symmetric for %q/%q: %f vs %f", pair[0].RawName, pair[1].RawName, ab.Similarity, ba.Similarity)
		}
		if ab.CategoryOverlap != ba.CategoryOverlap {
			t.Fatalf("category overlap not symmetric: %f vs %f", ab.CategoryOverlap, ba.CategoryOverlap)
		}
	}
}

func TestScore_Identity(t *testing.T) {
	t.Parallel()

	candidate := mustCandidate(t, "Bright Beginnings Preschool", "preschool")
	result := Score(candidate, candidate)
	if result.Similarity != 1 {
		t.Fatalf("expected identity similarity 1, got %f", result.Similarity)
	}
}

func TestScore_EmptyKeys(t *testing.T) {
	t.Parallel()

	// "!!!" survives NewCandidate (raw name non-blank) but normalizes away.
	empty := mustCandidate(t, "!!!")
	other := mustCandidate(t, "Chess Club")

	if got := Score(empty, empty).Similarity; got != 1 {
		t.Fatalf("two empty keys should score 1, got %f", got)
	}
	if got := Score(empty, other).Similarity; got != 0 {
		t.Fatalf("one empty key should score 0, got %f", got)
	}
}

func TestScore_LevenshteinSimilarity(t *testing.T) {
	t.Parallel()

	// "kitten" -> "sitting": distance 3 over max length 7.
	a := mustCandidate(t, "kitten")
	b := mustCandidate(t, "sitting")
	want := 1 - 3.0/7.0
	if got := Score(a, b).Similarity; math.Abs(got-want) > 1e-9 {
		t.Fatalf("unexpected similarity: got %f want %f", got, want)
	}
}

func TestScore_CategoryOverlap(t *testing.T) {
	t.Parallel()

	a := mustCandidate(t, "A", "swimming")
	b := mustCandidate(t, "B", "swimming", "sports")
	if got := Score(a, b).CategoryOverlap; got != 0.5 {
		t.Fatalf("expected overlap 0.5, got %f", got)
	}

	c := mustCandidate(t, "C")
	d := mustCandidate(t, "D")
	if got := Score(c, d).CategoryOverlap; got != 0 {
		t.Fatalf("expected zero overlap for empty sets, got %f", got)
	}
}

func TestScore_SignificantPrefix(t *testing.T) {
	t.Parallel()

	// Three matched leading words.
	a := mustCandidate(t, "SF Swim Academy")
	b := mustCandidate(t, "SF Swim Academy Inc.")
	if !Score(a, b).HasSignificantPrefix {
		t.Fatalf("expected three-word prefix to be significant")
	}

	// Two matched words, but the joined prefix is 17 chars.
	c := mustCandidate(t, "Bright Beginnings")
	d := mustCandidate(t, "Bright Beginnings Preschool")
	if !Score(c, d).HasSignificantPrefix {
		t.Fatalf("expected long two-word prefix to be significant")
	}

	// Gap breaks the run: only the first word matches.
	e := mustCandidate(t, "Mission Art Lab")
	f := mustCandidate(t, "Mission Creative Art Lab")
	if Score(e, f).HasSignificantPrefix {
		t.Fatalf("did not expect interrupted word run to count as prefix")
	}
}

func TestScore_Containment(t *testing.T) {
	t.Parallel()

	a := mustCandidate(t, "Art")
	b := mustCandidate(t, "Cartwright Studio")
	result := Score(a, b)
	if !result.ContainsMatch {
		t.Fatalf("expected %q to be contained in %q", a.Key, b.Key)
	}
	if result.ShorterLen != 3 {
		t.Fatalf("unexpected shorter length: got %d want 3", result.ShorterLen)
	}
}
