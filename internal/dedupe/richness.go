package dedupe

import (
	"sort"
	"strings"
)

// Richness counts the semantically populated fields of a record: its name,
// its category set, and every populated entry of the field bag. Identifiers
// and audit timestamps are excluded by construction of Record.Fields.
func Richness(r Record) int {
	score := 0
	if strings.TrimSpace(r.Name) != "" {
		score++
	}
	if len(r.Categories) > 0 {
		score++
	}
	for _, value := range r.Fields {
		if value.Populated() {
			score++
		}
	}
	return score
}

// SelectCanonical orders a duplicate set by richness and returns the survivor
// plus the remaining variants. Ties break deterministically: earliest
// creation time first (the longest-lived record survives), then lowest id,
// so the same input set always yields the same canonical regardless of input
// order.
func SelectCanonical(records []Record) (Record, []Record) {
	if len(records) == 0 {
		return Record{}, nil
	}
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := Richness(sorted[i]), Richness(sorted[j])
		if ri != rj {
			return ri > rj
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0], sorted[1:]
}
