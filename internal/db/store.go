package db

import (
	"context"
	"fmt"
	"strings"

	"sproutdir.app/sproutdir/internal/dedupe"
	"sproutdir.app/sproutdir/internal/globaltime"
)

// CatalogStore adapts the pool to the dedup core's Catalog, Store, and
// EventRecorder collaborator interfaces.
type CatalogStore struct {
	pool *Pool
}

func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// FetchLiveRecords returns every program still in the comparison universe:
// not merged away, not soft deleted.
func (s *CatalogStore) FetchLiveRecords(ctx context.Context) ([]dedupe.Record, error) {
	return fetchProgramRecords(ctx, s.pool, `p.merged_into IS NULL AND p.deleted_at IS NULL`)
}

// FetchRecordsByUUID resolves programs by uuid, merged ones included so the
// executor can report already-merged variants as no-ops.
func (s *CatalogStore) FetchRecordsByUUID(ctx context.Context, uuids []string) ([]dedupe.Record, error) {
	cleaned := make([]string, 0, len(uuids))
	for _, id := range uuids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(cleaned))
	args := make([]any, len(cleaned))
	for i, id := range cleaned {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	where := fmt.Sprintf(`p.program_uuid::text IN (%s) AND p.deleted_at IS NULL`, strings.Join(placeholders, ", "))
	return fetchProgramRecords(ctx, s.pool, where, args...)
}

// FetchValueUsage counts rows per distinct value of one mergeable field
// across every table carrying it.
func (s *CatalogStore) FetchValueUsage(ctx context.Context, field string) (map[string]int64, error) {
	columns, ok := valueFields[strings.TrimSpace(field)]
	if !ok {
		return nil, fmt.Errorf("field %q does not support value consolidation", field)
	}

	parts := make([]string, 0, len(columns))
	for _, tc := range columns {
		parts = append(parts, fmt.Sprintf(`SELECT %s AS value FROM %s WHERE %s IS NOT NULL AND %s <> ''`, tc.Column, tc.Table, tc.Column, tc.Column))
	}
	q := `SELECT value, COUNT(*) FROM (` + strings.Join(parts, " UNION ALL ") + `) v GROUP BY value`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s usage: %w", field, err)
	}
	defer rows.Close()

	usage := make(map[string]int64)
	for rows.Next() {
		var value string
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scan %s usage: %w", field, err)
		}
		usage[value] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s usage: %w", field, err)
	}
	return usage, nil
}

// ReassignDependents re-points every dependent row from the variant to the
// canonical program inside one transaction, so a group member is never left
// half reassigned.
func (s *CatalogStore) ReassignDependents(ctx context.Context, oldID, newID int64) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin reassign tx: %w", err)
	}

	var total int64
	for _, dep := range dependentTables {
		q := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, dep.Table, dep.Column, dep.Column)
		tag, err := tx.Exec(ctx, q, newID, oldID)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("reassign %s: %w", dep.Table, err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("commit reassign tx: %w", err)
	}
	return total, nil
}

// SoftMarkMerged writes the merged_into back-reference. Returns false when
// the variant was already merged away, which the executor reports as a
// success-no-op.
func (s *CatalogStore) SoftMarkMerged(ctx context.Context, variantID, canonicalID int64) (bool, error) {
	const q = `
UPDATE catalog.programs
SET merged_into = $2, updated_at = $3
WHERE program_id = $1 AND merged_into IS NULL
`
	tag, err := s.pool.Exec(ctx, q, variantID, canonicalID, globaltime.UTC())
	if err != nil {
		return false, fmt.Errorf("mark program %d merged: %w", variantID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// HardDelete removes the variant row outright. Returns false when nothing
// was left to delete.
func (s *CatalogStore) HardDelete(ctx context.Context, variantID int64) (bool, error) {
	const q = `DELETE FROM catalog.programs WHERE program_id = $1`
	tag, err := s.pool.Exec(ctx, q, variantID)
	if err != nil {
		return false, fmt.Errorf("delete program %d: %w", variantID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateValue rewrites exact matches of oldValue to newValue in every table
// carrying the field, returning total rows updated.
func (s *CatalogStore) UpdateValue(ctx context.Context, field, oldValue, newValue string) (int64, error) {
	columns, ok := valueFields[strings.TrimSpace(field)]
	if !ok {
		return 0, fmt.Errorf("field %q does not support value consolidation", field)
	}

	tx, err := s.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin value update tx: %w", err)
	}

	var total int64
	for _, tc := range columns {
		q := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, tc.Table, tc.Column, tc.Column)
		tag, err := tx.Exec(ctx, q, newValue, oldValue)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("update %s.%s: %w", tc.Table, tc.Column, err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("commit value update tx: %w", err)
	}
	return total, nil
}

// RecordMergeEvent appends one audit row per executor outcome.
func (s *CatalogStore) RecordMergeEvent(ctx context.Context, outcome dedupe.Outcome) error {
	const q = `
INSERT INTO catalog.merge_events (
	batch_uuid,
	kind,
	variant_id,
	canonical_id,
	field,
	variant_value,
	canonical_value,
	success,
	no_op,
	rows_reassigned,
	rows_updated,
	message,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	_, err := s.pool.Exec(
		ctx,
		q,
		outcome.BatchID,
		outcome.Kind,
		nullableID(outcome.VariantID),
		nullableID(outcome.CanonicalID),
		nullableString(outcome.Field),
		nullableString(outcome.Value),
		nullableString(outcome.Canonical),
		outcome.Success,
		outcome.NoOp,
		outcome.RowsReassigned,
		outcome.RowsUpdated,
		outcome.Message,
		globaltime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert merge event batch=%s: %w", outcome.BatchID, err)
	}
	return nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
