package match

import "strings"

const (
	// A shared leading-word run is significant when at least this many words
	// match, or when the joined prefix reaches significantPrefixChars.
	significantPrefixWords = 3
	significantPrefixChars = 15
)

// Similarity carries every signal the classifier consumes for one pair.
// Produced fresh per comparison and never persisted.
type Similarity struct {
	// Similarity is the normalized Levenshtein similarity of the two keys,
	// in [0,1].
	Similarity float64
	// CategoryOverlap is |intersection| / max(|A|, |B|), in [0,1]; zero when
	// both sets are empty.
	CategoryOverlap float64
	// HasSignificantPrefix reports a leading run of case-insensitively equal
	// words of significant length (see significantPrefixWords/Chars).
	HasSignificantPrefix bool
	// ContainsMatch reports that the longer key contains the shorter key.
	ContainsMatch bool
	// ShorterLen is the length of the shorter normalized key, used by the
	// classifier to gate the containment rule.
	ShorterLen int
}

// Score computes all pairwise signals between two candidates. Pure and
// symmetric in the similarity component.
func Score(a, b Candidate) Similarity {
	return Similarity{
		Similarity:           keySimilarity(a.Key, b.Key),
		CategoryOverlap:      categoryOverlap(a.Categories, b.Categories),
		HasSignificantPrefix: hasSignificantPrefix(a.RawName, b.RawName),
		ContainsMatch:        containsMatch(a.Key, b.Key),
		ShorterLen:           shorterLen(a.Key, b.Key),
	}
}

func keySimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	distance := levenshtein(ra, rb)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(distance)/float64(longest)
}

// levenshtein is the classic dynamic-programming edit distance with unit
// insert/delete/substitute costs, rolling over two rows.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := 0; i <= len(a); i++ {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			deletion := prev[i] + 1
			insertion := curr[i-1] + 1
			substitution := prev[i-1] + cost
			best := deletion
			if insertion < best {
				best = insertion
			}
			if substitution < best {
				best = substitution
			}
			curr[i] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}

func categoryOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tag := range a {
		setA[tag] = struct{}{}
	}
	intersection := 0
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, ok := setA[tag]; ok {
			intersection++
		}
	}

	larger := len(setA)
	if len(seen) > larger {
		larger = len(seen)
	}
	return float64(intersection) / float64(larger)
}

// hasSignificantPrefix walks both raw names word by word from index 0 while
// the words are case-insensitively equal. Order matters and the first
// mismatch ends the run; this is a prefix match, not a subsequence.
func hasSignificantPrefix(rawA, rawB string) bool {
	wordsA := strings.Fields(rawA)
	wordsB := strings.Fields(rawB)

	matched := 0
	joinedLen := 0
	for matched < len(wordsA) && matched < len(wordsB) {
		if !strings.EqualFold(wordsA[matched], wordsB[matched]) {
			break
		}
		if matched > 0 {
			joinedLen++ // separating space in the joined prefix
		}
		joinedLen += len([]rune(strings.ToLower(wordsA[matched])))
		matched++
	}

	if matched >= significantPrefixWords {
		return true
	}
	return matched > 0 && joinedLen >= significantPrefixChars
}

func containsMatch(a, b string) bool {
	shorter, longer := orderByLength(a, b)
	if shorter == "" {
		return false
	}
	return strings.Contains(longer, shorter) || strings.HasPrefix(longer, shorter)
}

func shorterLen(a, b string) int {
	shorter, _ := orderByLength(a, b)
	return len([]rune(shorter))
}

func orderByLength(a, b string) (shorter, longer string) {
	if len([]rune(a)) <= len([]rune(b)) {
		return a, b
	}
	return b, a
}
