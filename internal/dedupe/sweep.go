package dedupe

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/match"
)

// Sweeper runs the two read-only classification modes: screening one new
// candidate against the live catalog, and partitioning the whole live catalog
// into duplicate groups.
type Sweeper struct {
	classifier match.Classifier
	logger     zerolog.Logger
}

func NewSweeper(classifier match.Classifier, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		classifier: classifier,
		logger:     logger,
	}
}

// Screen compares one submission candidate against every live record and
// returns the records judged duplicates. Advisory only; nothing is written.
func (s *Sweeper) Screen(candidate match.Candidate, records []Record) []Record {
	cache := match.NewCache()

	var matches []Record
	for _, record := range records {
		if !record.Live() {
			continue
		}
		other, err := match.NewCandidateCached(record.Name, record.Categories, cache)
		if err != nil {
			s.logger.Warn().Err(err).Int64("record_id", record.ID).Msg("skipping unnameable record during screening")
			continue
		}
		if _, dup := s.classifier.Match(candidate, other); dup {
			matches = append(matches, record)
		}
	}
	return matches
}

// Sweep partitions the live records into duplicate groups. Records sharing an
// exact bucket key (normalized name plus coarse category tag) are unioned
// without scoring; pairwise classification then runs only across bucket
// boundaries. Transitive links are closed with union-find, and each group's
// canonical is chosen by richness.
func (s *Sweeper) Sweep(records []Record) []Group {
	cache := match.NewCache()

	live := make([]Record, 0, len(records))
	candidates := make([]match.Candidate, 0, len(records))
	for _, record := range records {
		if !record.Live() {
			continue
		}
		candidate, err := match.NewCandidateCached(record.Name, record.Categories, cache)
		if err != nil {
			s.logger.Warn().Err(err).Int64("record_id", record.ID).Msg("skipping unnameable record during sweep")
			continue
		}
		live = append(live, record)
		candidates = append(candidates, candidate)
	}
	if len(live) < 2 {
		return nil
	}

	uf := newUnionFind(len(live))

	// Exact-key fast path.
	buckets := make(map[string][]int, len(live))
	for i, candidate := range candidates {
		key := bucketKey(candidate)
		buckets[key] = append(buckets[key], i)
	}
	for _, indices := range buckets {
		for k := 1; k < len(indices); k++ {
			uf.union(indices[0], indices[k])
		}
	}

	// Pairwise pass for near-duplicates that do not share the bucket key.
	// Bucketing is an optimization only; correctness comes from this pass.
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if _, dup := s.classifier.Match(candidates[i], candidates[j]); dup {
				uf.union(i, j)
			}
		}
	}

	clusters := make(map[int][]Record)
	for i := range live {
		root := uf.find(i)
		clusters[root] = append(clusters[root], live[i])
	}

	var groups []Group
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		canonical, variants := SelectCanonical(members)
		sort.Slice(variants, func(a, b int) bool { return variants[a].ID < variants[b].ID })
		groups = append(groups, Group{Canonical: canonical, Variants: variants})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Canonical.ID < groups[b].Canonical.ID })

	s.logger.Debug().
		Int("live_records", len(live)).
		Int("groups", len(groups)).
		Msg("sweep complete")
	return groups
}

// bucketKey combines the normalized name with a coarse type tag so obviously
// identical listings skip pairwise scoring.
func bucketKey(candidate match.Candidate) string {
	tag := ""
	if len(candidate.Categories) > 0 {
		tags := make([]string, len(candidate.Categories))
		copy(tags, candidate.Categories)
		sort.Strings(tags)
		tag = tags[0]
	}
	return candidate.Key + "|" + strings.ToLower(tag)
}
