package dedupe

import (
	"sort"
	"strings"

	"sproutdir.app/sproutdir/internal/match"
)

// SuggestValueMerges clusters the distinct raw values of one text attribute
// (neighborhood labels, price units) into canonical/variant groups, reusing
// the duplicate classifier's string rules with empty category sets. The
// canonical spelling is the most-used value, ties broken toward the longer
// then lexicographically smaller value so repeated runs agree.
func SuggestValueMerges(usage map[string]int64, classifier match.Classifier) []ValueGroup {
	type entry struct {
		value     string
		candidate match.Candidate
	}
	entries := make([]entry, 0, len(usage))
	cache := match.NewCache()
	for value := range usage {
		candidate, err := match.NewCandidateCached(value, nil, cache)
		if err != nil {
			continue
		}
		entries = append(entries, entry{value: value, candidate: candidate})
	}
	if len(entries) < 2 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	values := make([]string, len(entries))
	candidates := make([]match.Candidate, len(entries))
	for i, e := range entries {
		values[i] = e.value
		candidates[i] = e.candidate
	}

	uf := newUnionFind(len(values))
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if _, dup := classifier.Match(candidates[i], candidates[j]); dup {
				uf.union(i, j)
			}
		}
	}

	clusters := make(map[int][]string)
	for i, value := range values {
		root := uf.find(i)
		clusters[root] = append(clusters[root], value)
	}

	var groups []ValueGroup
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		canonical := pickCanonicalValue(members, usage)
		variants := make([]string, 0, len(members)-1)
		groupUsage := make(map[string]int64, len(members))
		for _, member := range members {
			groupUsage[member] = usage[member]
			if member != canonical {
				variants = append(variants, member)
			}
		}
		sort.Strings(variants)
		groups = append(groups, ValueGroup{
			Canonical: canonical,
			Variants:  variants,
			Usage:     groupUsage,
		})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Canonical < groups[b].Canonical })
	return groups
}

func pickCanonicalValue(members []string, usage map[string]int64) string {
	best := members[0]
	for _, member := range members[1:] {
		switch {
		case usage[member] > usage[best]:
			best = member
		case usage[member] == usage[best] && len(member) > len(best):
			best = member
		case usage[member] == usage[best] && len(member) == len(best) && member < best:
			best = member
		}
	}
	return best
}

// NormalizeValueKey exposes the comparison key for one raw value; the admin
// UI shows it next to suggestions.
func NormalizeValueKey(value string) string {
	return match.Normalize(strings.TrimSpace(value))
}
