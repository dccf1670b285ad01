package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/match"
)

// Catalog is the read collaborator: everything the dedup core needs to know
// about live records and value usage, nothing more.
type Catalog interface {
	// FetchLiveRecords returns every record not merged away, with the fields
	// richness scoring needs.
	FetchLiveRecords(ctx context.Context) ([]Record, error)
	// FetchRecordsByUUID resolves records (live or merged) by their uuids.
	FetchRecordsByUUID(ctx context.Context, uuids []string) ([]Record, error)
	// FetchValueUsage returns distinct values of one mergeable field with
	// the count of rows carrying each exact value.
	FetchValueUsage(ctx context.Context, field string) (map[string]int64, error)
}

// Service is the external surface of the dedup core, wiring the sweeper and
// executor over the catalog/store collaborators.
type Service struct {
	catalog  Catalog
	sweeper  *Sweeper
	executor *Executor
	logger   zerolog.Logger
}

func NewService(catalog Catalog, store Store, classifier match.Classifier, logger zerolog.Logger, opts ExecutorOptions) *Service {
	return &Service{
		catalog:  catalog,
		sweeper:  NewSweeper(classifier, logger),
		executor: NewExecutor(store, logger, opts),
		logger:   logger,
	}
}

// ScreenForDuplicates compares one submission against the live catalog and
// returns the likely duplicates. Read-only; the caller decides whether to
// block, accept as pending, or redirect.
func (s *Service) ScreenForDuplicates(ctx context.Context, name string, categories []string) ([]Record, error) {
	candidate, err := match.NewCandidate(name, categories)
	if err != nil {
		return nil, err
	}
	records, err := s.catalog.FetchLiveRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch live records: %w", err)
	}
	return s.sweeper.Screen(candidate, records), nil
}

// SweepForDuplicateGroups partitions the live catalog into duplicate groups.
// Read-only.
func (s *Service) SweepForDuplicateGroups(ctx context.Context) ([]Group, error) {
	records, err := s.catalog.FetchLiveRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch live records: %w", err)
	}
	return s.sweeper.Sweep(records), nil
}

// ResolveGroup builds a user-directed merge group from an externally chosen
// canonical and its variants. The canonical must still be live; variants that
// are already merged away stay in the group so the executor can report them
// as no-ops.
func (s *Service) ResolveGroup(ctx context.Context, canonicalUUID string, variantUUIDs []string) (Group, error) {
	canonicalUUID = strings.TrimSpace(canonicalUUID)
	if canonicalUUID == "" {
		return Group{}, fmt.Errorf("canonical uuid is required")
	}
	if len(variantUUIDs) == 0 {
		return Group{}, fmt.Errorf("at least one variant uuid is required")
	}

	wanted := append([]string{canonicalUUID}, variantUUIDs...)
	records, err := s.catalog.FetchRecordsByUUID(ctx, wanted)
	if err != nil {
		return Group{}, fmt.Errorf("fetch merge group records: %w", err)
	}
	byUUID := make(map[string]Record, len(records))
	for _, record := range records {
		byUUID[record.UUID] = record
	}

	canonical, ok := byUUID[canonicalUUID]
	if !ok {
		return Group{}, fmt.Errorf("canonical record %s not found", canonicalUUID)
	}
	if !canonical.Live() {
		return Group{}, fmt.Errorf("canonical record %s is already merged away", canonicalUUID)
	}

	group := Group{Canonical: canonical}
	for _, variantUUID := range variantUUIDs {
		variantUUID = strings.TrimSpace(variantUUID)
		variant, ok := byUUID[variantUUID]
		if !ok {
			return Group{}, fmt.Errorf("variant record %s not found", variantUUID)
		}
		if variant.ID == canonical.ID {
			continue
		}
		group.Variants = append(group.Variants, variant)
	}
	if len(group.Variants) == 0 {
		return Group{}, fmt.Errorf("merge group has no variants distinct from the canonical")
	}
	return group, nil
}

// ConsolidateRecords merges the given groups; see Executor.ConsolidateRecords.
func (s *Service) ConsolidateRecords(ctx context.Context, groups []Group, opts ConsolidateOptions) ([]Outcome, error) {
	return s.executor.ConsolidateRecords(ctx, groups, opts)
}

// ConsolidateValue canonicalizes a shared text attribute; see
// Executor.ConsolidateValue.
func (s *Service) ConsolidateValue(ctx context.Context, field, canonical string, variants []string, opts ConsolidateOptions) ([]Outcome, error) {
	return s.executor.ConsolidateValue(ctx, field, canonical, variants, opts)
}

// SuggestValueMerges clusters the current values of one mergeable field into
// canonical/variant suggestions for the operator.
func (s *Service) SuggestValueMerges(ctx context.Context, field string) ([]ValueGroup, error) {
	usage, err := s.catalog.FetchValueUsage(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("fetch %s usage: %w", field, err)
	}
	return SuggestValueMerges(usage, s.sweeper.classifier), nil
}
