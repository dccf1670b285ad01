package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sproutdir.app/sproutdir/internal/dedupe"
)

type tableColumn struct {
	Table  string
	Column string
}

// dependentTables lists every foreign-key relationship re-pointed when a
// variant program merges into a canonical one.
var dependentTables = []tableColumn{
	{Table: "catalog.program_locations", Column: "program_id"},
	{Table: "catalog.program_reviews", Column: "program_id"},
}

// valueFields maps each mergeable text attribute to the table columns that
// carry it. Only fields listed here accept value consolidation; the names
// are fixed identifiers, never caller input interpolated into SQL.
var valueFields = map[string][]tableColumn{
	"neighborhood": {
		{Table: "catalog.programs", Column: "neighborhood"},
		{Table: "catalog.program_locations", Column: "neighborhood"},
	},
	"price_unit": {
		{Table: "catalog.programs", Column: "price_unit"},
	},
}

// ValueFields returns the attribute names that support value consolidation.
func ValueFields() []string {
	names := make([]string, 0, len(valueFields))
	for name := range valueFields {
		names = append(names, name)
	}
	return names
}

type programRow struct {
	ProgramID           int64
	ProgramUUID         string
	Name                string
	Description         string
	Categories          []byte
	Address             *string
	Neighborhood        *string
	ContactEmail        *string
	ContactPhone        *string
	WebsiteURL          *string
	RegistrationURL     *string
	OperatingDays       []byte
	PriceMin            *float64
	PriceMax            *float64
	PriceUnit           *string
	PriceDescription    *string
	Language            string
	ReEnrollmentDate    *time.Time
	NewRegistrationDate *time.Time
	MergedInto          *int64
	CreatedAt           time.Time
}

const programColumns = `
	p.program_id,
	p.program_uuid,
	p.name,
	p.description,
	p.categories,
	p.address,
	p.neighborhood,
	p.contact_email,
	p.contact_phone,
	p.website_url,
	p.registration_url,
	p.operating_days,
	p.price_min,
	p.price_max,
	p.price_unit,
	p.price_description,
	p.language,
	p.re_enrollment_date,
	p.new_registration_date,
	p.merged_into,
	p.created_at
`

func scanProgramRow(rows *Rows) (programRow, error) {
	var row programRow
	err := rows.Scan(
		&row.ProgramID,
		&row.ProgramUUID,
		&row.Name,
		&row.Description,
		&row.Categories,
		&row.Address,
		&row.Neighborhood,
		&row.ContactEmail,
		&row.ContactPhone,
		&row.WebsiteURL,
		&row.RegistrationURL,
		&row.OperatingDays,
		&row.PriceMin,
		&row.PriceMax,
		&row.PriceUnit,
		&row.PriceDescription,
		&row.Language,
		&row.ReEnrollmentDate,
		&row.NewRegistrationDate,
		&row.MergedInto,
		&row.CreatedAt,
	)
	return row, err
}

// recordFromProgramRow converts a row into the dedup core's record shape.
// The field bag enumerates exactly the columns that count toward richness;
// identifiers and audit timestamps stay out.
func recordFromProgramRow(row programRow) dedupe.Record {
	fields := map[string]dedupe.FieldValue{
		"description":       optionalString(&row.Description),
		"address":           optionalString(row.Address),
		"neighborhood":      optionalString(row.Neighborhood),
		"contact_email":     optionalString(row.ContactEmail),
		"contact_phone":     optionalString(row.ContactPhone),
		"website_url":       optionalString(row.WebsiteURL),
		"registration_url":  optionalString(row.RegistrationURL),
		"operating_days":    dedupe.ListField(decodeStringList(row.OperatingDays)),
		"price_min":         optionalNumber(row.PriceMin),
		"price_max":         optionalNumber(row.PriceMax),
		"price_unit":        optionalString(row.PriceUnit),
		"price_description": optionalString(row.PriceDescription),
		"language":          languageField(row.Language),
	}
	if row.ReEnrollmentDate != nil {
		fields["re_enrollment_date"] = dedupe.StringField(row.ReEnrollmentDate.Format("2006-01-02"))
	}
	if row.NewRegistrationDate != nil {
		fields["new_registration_date"] = dedupe.StringField(row.NewRegistrationDate.Format("2006-01-02"))
	}

	return dedupe.Record{
		ID:         row.ProgramID,
		UUID:       row.ProgramUUID,
		Name:       row.Name,
		Categories: decodeStringList(row.Categories),
		Fields:     fields,
		CreatedAt:  row.CreatedAt,
		MergedInto: row.MergedInto,
	}
}

func optionalString(value *string) dedupe.FieldValue {
	if value == nil {
		return dedupe.FieldValue{}
	}
	return dedupe.StringField(*value)
}

func optionalNumber(value *float64) dedupe.FieldValue {
	if value == nil {
		return dedupe.FieldValue{}
	}
	return dedupe.NumberField(*value)
}

// languageField treats the "und" default as unpopulated: it carries no
// information about data quality.
func languageField(language string) dedupe.FieldValue {
	if language == "" || language == "und" {
		return dedupe.FieldValue{}
	}
	return dedupe.StringField(language)
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func fetchProgramRecords(ctx context.Context, pool *Pool, where string, args ...any) ([]dedupe.Record, error) {
	q := `SELECT` + programColumns + `FROM catalog.programs p WHERE ` + where + ` ORDER BY p.program_id`
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	var records []dedupe.Record
	for rows.Next() {
		row, err := scanProgramRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program row: %w", err)
		}
		records = append(records, recordFromProgramRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program rows: %w", err)
	}
	return records, nil
}
