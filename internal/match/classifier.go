package match

// Thresholds tunes the classifier. Containment alone cannot be trusted for
// short names ("art" inside "cartwright"), so it requires either a long
// enough shorter name or corroborating category agreement; bare text
// similarity needs a higher bar than similarity with category agreement.
type Thresholds struct {
	// Similarity is the bar for text similarity with no other signal.
	Similarity float64
	// SimilarityWithCategory is the lower bar used when category overlap
	// exceeds CategoryOverlap.
	SimilarityWithCategory float64
	// CategoryOverlap is the overlap ratio treated as category agreement.
	CategoryOverlap float64
	// ContainmentMinLength is the minimum shorter-key length for the
	// containment rule to apply at all.
	ContainmentMinLength int
	// ContainmentStrongLength is the shorter-key length at which containment
	// needs no category agreement.
	ContainmentStrongLength int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Similarity:              0.75,
		SimilarityWithCategory:  0.65,
		CategoryOverlap:         0.3,
		ContainmentMinLength:    10,
		ContainmentStrongLength: 15,
	}
}

// Classifier turns a Similarity into a duplicate verdict via ordered rules,
// most specific first so a lenient rule never masks a stricter one.
type Classifier struct {
	thresholds Thresholds
}

func NewClassifier(thresholds Thresholds) Classifier {
	defaults := DefaultThresholds()
	if thresholds.Similarity <= 0 {
		thresholds.Similarity = defaults.Similarity
	}
	if thresholds.SimilarityWithCategory <= 0 {
		thresholds.SimilarityWithCategory = defaults.SimilarityWithCategory
	}
	if thresholds.CategoryOverlap <= 0 {
		thresholds.CategoryOverlap = defaults.CategoryOverlap
	}
	if thresholds.ContainmentMinLength <= 0 {
		thresholds.ContainmentMinLength = defaults.ContainmentMinLength
	}
	if thresholds.ContainmentStrongLength <= 0 {
		thresholds.ContainmentStrongLength = defaults.ContainmentStrongLength
	}
	return Classifier{thresholds: thresholds}
}

func (c Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// IsDuplicate applies the decision rules in order; the first rule that fires
// wins.
func (c Classifier) IsDuplicate(result Similarity) bool {
	t := c.thresholds

	if result.HasSignificantPrefix {
		return true
	}

	if result.ContainsMatch && result.ShorterLen >= t.ContainmentMinLength {
		if result.ShorterLen >= t.ContainmentStrongLength || result.CategoryOverlap > t.CategoryOverlap {
			return true
		}
	}

	if result.Similarity > t.SimilarityWithCategory && result.CategoryOverlap > t.CategoryOverlap {
		return true
	}

	return result.Similarity > t.Similarity
}

// Match scores a pair and classifies it in one step.
func (c Classifier) Match(a, b Candidate) (Similarity, bool) {
	result := Score(a, b)
	return result, c.IsDuplicate(result)
}
