package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Mode selects how a merged-away variant leaves the live set.
type Mode string

const (
	// ModeSoftMark writes a merged_into back-reference; reversible and
	// preserves the audit trail. The default everywhere.
	ModeSoftMark Mode = "soft"
	// ModeHardDelete removes the variant row outright.
	ModeHardDelete Mode = "hard"
)

// ErrNotConfirmed rejects a destructive consolidation whose caller has not
// passed the elevated-confirmation check. Returned before any write begins.
var ErrNotConfirmed = errors.New("consolidation requires elevated confirmation")

// Store is the persistence collaborator the executor writes through. The
// surrounding application decides which tables are dependent and which
// columns carry mergeable values.
type Store interface {
	// ReassignDependents re-points every dependent row from oldID to newID
	// across all configured dependent tables, returning rows touched.
	ReassignDependents(ctx context.Context, oldID, newID int64) (int64, error)
	// SoftMarkMerged sets the merged_into back-reference; returns false when
	// the variant was already merged away.
	SoftMarkMerged(ctx context.Context, variantID, canonicalID int64) (bool, error)
	// HardDelete removes the variant row; returns false when nothing was
	// live to delete.
	HardDelete(ctx context.Context, variantID int64) (bool, error)
	// UpdateValue rewrites column values equal to oldValue (exact,
	// case-sensitive) to newValue across the tables carrying the field,
	// returning rows updated.
	UpdateValue(ctx context.Context, field, oldValue, newValue string) (int64, error)
}

// EventRecorder is implemented by stores that keep a merge audit ledger.
// Recording failures are logged, never surfaced as item failures.
type EventRecorder interface {
	RecordMergeEvent(ctx context.Context, outcome Outcome) error
}

// Outcome reports one processed item of a consolidation batch.
type Outcome struct {
	BatchID        string `json:"batch_id"`
	Kind           string `json:"kind"` // "record" or "value"
	VariantID      int64  `json:"variant_id,omitempty"`
	CanonicalID    int64  `json:"canonical_id,omitempty"`
	Field          string `json:"field,omitempty"`
	Value          string `json:"value,omitempty"`
	Canonical      string `json:"canonical,omitempty"`
	Success        bool   `json:"success"`
	NoOp           bool   `json:"no_op,omitempty"`
	RowsReassigned int64  `json:"rows_reassigned,omitempty"`
	RowsUpdated    int64  `json:"rows_updated,omitempty"`
	Message        string `json:"message"`
}

// ExecutorOptions tunes write behavior. Zero values take defaults.
type ExecutorOptions struct {
	// Parallelism caps how many disjoint groups execute concurrently.
	Parallelism int
	// WriteTimeout bounds each collaborator write.
	WriteTimeout time.Duration
	// WriteRetries is how many times a failed write is retried.
	WriteRetries int
	// RatePerSecond throttles collaborator writes; zero means unlimited.
	RatePerSecond float64
}

// ConsolidateOptions carries the per-call destructive-operation settings.
type ConsolidateOptions struct {
	Mode Mode
	// Confirmed must be set by the boundary layer after its authorization
	// check (interactive prompt, merge token). Checked before any write.
	Confirmed bool
}

// Executor performs the writes of a consolidation: reassigning dependent
// rows, removing variants, and rewriting shared values. Pure classification
// lives elsewhere; this is the only component that touches the store.
type Executor struct {
	store        Store
	logger       zerolog.Logger
	limiter      *rate.Limiter
	parallelism  int
	writeTimeout time.Duration
	writeRetries int
	locks        idLocks
}

func NewExecutor(store Store, logger zerolog.Logger, opts ExecutorOptions) *Executor {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	writeRetries := opts.WriteRetries
	if writeRetries < 0 {
		writeRetries = 0
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return &Executor{
		store:        store,
		logger:       logger,
		limiter:      limiter,
		parallelism:  parallelism,
		writeTimeout: writeTimeout,
		writeRetries: writeRetries,
		locks:        idLocks{held: make(map[int64]*sync.Mutex)},
	}
}

// ConsolidateRecords merges every group: dependent rows of each variant are
// re-pointed at the canonical, then the variant leaves the live set per the
// mode. Groups with disjoint members run in parallel; writes touching the
// same identifiers are serialized. A failure on one member is reported in
// its outcome and never aborts the batch. Cancellation is honored between
// groups only; a group that has started always finishes its members.
func (e *Executor) ConsolidateRecords(ctx context.Context, groups []Group, opts ConsolidateOptions) ([]Outcome, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("executor is not initialized")
	}
	if !opts.Confirmed {
		return nil, ErrNotConfirmed
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeSoftMark
	}
	if mode != ModeSoftMark && mode != ModeHardDelete {
		return nil, fmt.Errorf("unknown consolidation mode %q", mode)
	}

	batchID := uuid.NewString()
	perGroup := make([][]Outcome, len(groups))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i := range groups {
		if ctx.Err() != nil {
			perGroup[i] = e.cancelledOutcomes(batchID, groups[i])
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				perGroup[i] = e.cancelledOutcomes(batchID, groups[i])
				return nil
			}
			perGroup[i] = e.consolidateGroup(ctx, batchID, groups[i], mode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(groups))
	for _, groupOutcomes := range perGroup {
		outcomes = append(outcomes, groupOutcomes...)
	}
	return outcomes, nil
}

func (e *Executor) consolidateGroup(ctx context.Context, batchID string, group Group, mode Mode) []Outcome {
	ids := make([]int64, 0, len(group.Variants)+1)
	ids = append(ids, group.Canonical.ID)
	for _, variant := range group.Variants {
		ids = append(ids, variant.ID)
	}
	release := e.locks.acquire(ids)
	defer release()

	// Once a group starts, its writes run detached from the caller's
	// cancellation: a half-reassigned group is not a safe stopping point.
	writeCtx := context.WithoutCancel(ctx)

	outcomes := make([]Outcome, 0, len(group.Variants))
	for _, variant := range group.Variants {
		outcome := e.mergeVariant(writeCtx, batchID, group.Canonical.ID, variant, mode)
		e.recordEvent(writeCtx, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (e *Executor) mergeVariant(ctx context.Context, batchID string, canonicalID int64, variant Record, mode Mode) Outcome {
	outcome := Outcome{
		BatchID:     batchID,
		Kind:        "record",
		VariantID:   variant.ID,
		CanonicalID: canonicalID,
	}

	if !variant.Live() {
		// Already merged away; re-running a batch is a success-no-op, not an
		// error, because sweeps re-discover resolved groups across runs.
		outcome.Success = true
		outcome.NoOp = true
		outcome.Message = fmt.Sprintf("record %d already merged into %d", variant.ID, *variant.MergedInto)
		return outcome
	}
	if variant.ID == canonicalID {
		outcome.Success = true
		outcome.NoOp = true
		outcome.Message = "variant is the canonical record"
		return outcome
	}

	reassigned, err := e.write(ctx, func(writeCtx context.Context) (int64, error) {
		return e.store.ReassignDependents(writeCtx, variant.ID, canonicalID)
	})
	if err != nil {
		outcome.Message = fmt.Sprintf("reassign dependents: %v", err)
		return outcome
	}
	outcome.RowsReassigned = reassigned

	switch mode {
	case ModeHardDelete:
		deleted, err := e.writeBool(ctx, func(writeCtx context.Context) (bool, error) {
			return e.store.HardDelete(writeCtx, variant.ID)
		})
		if err != nil {
			outcome.Message = fmt.Sprintf("delete variant: %v", err)
			return outcome
		}
		outcome.Success = true
		if !deleted {
			outcome.NoOp = true
			outcome.Message = fmt.Sprintf("record %d was already gone", variant.ID)
		} else {
			outcome.Message = fmt.Sprintf("record %d deleted, %d dependent rows re-pointed to %d", variant.ID, reassigned, canonicalID)
		}
	default:
		marked, err := e.writeBool(ctx, func(writeCtx context.Context) (bool, error) {
			return e.store.SoftMarkMerged(writeCtx, variant.ID, canonicalID)
		})
		if err != nil {
			outcome.Message = fmt.Sprintf("mark variant merged: %v", err)
			return outcome
		}
		outcome.Success = true
		if !marked {
			outcome.NoOp = true
			outcome.Message = fmt.Sprintf("record %d was already marked merged", variant.ID)
		} else {
			outcome.Message = fmt.Sprintf("record %d merged into %d, %d dependent rows re-pointed", variant.ID, canonicalID, reassigned)
		}
	}
	return outcome
}

// ConsolidateValue rewrites every row whose field value exactly equals one of
// the variants to the canonical spelling, one outcome per variant. Naturally
// idempotent: a second run updates zero rows.
func (e *Executor) ConsolidateValue(ctx context.Context, field, canonical string, variants []string, opts ConsolidateOptions) ([]Outcome, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("executor is not initialized")
	}
	if !opts.Confirmed {
		return nil, ErrNotConfirmed
	}
	if strings.TrimSpace(field) == "" {
		return nil, fmt.Errorf("field is required")
	}
	if strings.TrimSpace(canonical) == "" {
		return nil, fmt.Errorf("canonical value is required")
	}

	batchID := uuid.NewString()
	outcomes := make([]Outcome, 0, len(variants))
	for _, variant := range variants {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{
				BatchID:   batchID,
				Kind:      "value",
				Field:     field,
				Value:     variant,
				Canonical: canonical,
				Message:   "cancelled before processing",
			})
			continue
		}

		outcome := Outcome{
			BatchID:   batchID,
			Kind:      "value",
			Field:     field,
			Value:     variant,
			Canonical: canonical,
		}
		if variant == canonical {
			outcome.Success = true
			outcome.NoOp = true
			outcome.Message = "variant equals the canonical value"
			outcomes = append(outcomes, outcome)
			continue
		}

		writeCtx := context.WithoutCancel(ctx)
		updated, err := e.write(writeCtx, func(c context.Context) (int64, error) {
			return e.store.UpdateValue(c, field, variant, canonical)
		})
		if err != nil {
			outcome.Message = fmt.Sprintf("update %s rows: %v", field, err)
		} else {
			outcome.Success = true
			outcome.RowsUpdated = updated
			outcome.Message = fmt.Sprintf("%d rows updated from %q to %q", updated, variant, canonical)
		}
		e.recordEvent(writeCtx, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// write runs one collaborator write with rate limiting, a per-write timeout,
// and bounded retries.
func (e *Executor) write(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= e.writeRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}
		writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
		n, err := fn(writeCtx)
		cancel()
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func (e *Executor) writeBool(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	n, err := e.write(ctx, func(c context.Context) (int64, error) {
		ok, err := fn(c)
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return 0, nil
	})
	return n == 1, err
}

func (e *Executor) recordEvent(ctx context.Context, outcome Outcome) {
	recorder, ok := e.store.(EventRecorder)
	if !ok {
		return
	}
	if err := recorder.RecordMergeEvent(ctx, outcome); err != nil {
		e.logger.Warn().Err(err).Str("batch_id", outcome.BatchID).Msg("failed to record merge event")
	}
}

func (e *Executor) cancelledOutcomes(batchID string, group Group) []Outcome {
	outcomes := make([]Outcome, 0, len(group.Variants))
	for _, variant := range group.Variants {
		outcomes = append(outcomes, Outcome{
			BatchID:     batchID,
			Kind:        "record",
			VariantID:   variant.ID,
			CanonicalID: group.Canonical.ID,
			Message:     "cancelled before group started",
		})
	}
	return outcomes
}

// idLocks serializes writes per target identifier so two concurrent
// consolidations never race to reassign the same rows. Identifiers are
// locked in sorted order to rule out deadlock.
type idLocks struct {
	mu   sync.Mutex
	held map[int64]*sync.Mutex
}

func (l *idLocks) acquire(ids []int64) (release func()) {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var acquired []*sync.Mutex
	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		last = id
		l.mu.Lock()
		lock, ok := l.held[id]
		if !ok {
			lock = &sync.Mutex{}
			l.held[id] = lock
		}
		l.mu.Unlock()
		lock.Lock()
		acquired = append(acquired, lock)
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}
