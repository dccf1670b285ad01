package programschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed program_submission.schema.json
var programSubmissionSchemaJSON string

// ProgramSubmission is a validated inbound program record, as submitted by
// scrapers or the admin API before it is written to the catalog.
type ProgramSubmission struct {
	PayloadVersion      string         `json:"payload_version"`
	Name                string         `json:"name"`
	Description         *string        `json:"description,omitempty"`
	Categories          []string       `json:"categories"`
	Address             *string        `json:"address,omitempty"`
	Neighborhood        *string        `json:"neighborhood,omitempty"`
	ContactEmail        *string        `json:"contact_email,omitempty"`
	ContactPhone        *string        `json:"contact_phone,omitempty"`
	WebsiteURL          *string        `json:"website_url,omitempty"`
	RegistrationURL     *string        `json:"registration_url,omitempty"`
	OperatingDays       []string       `json:"operating_days,omitempty"`
	PriceMin            *float64       `json:"price_min,omitempty"`
	PriceMax            *float64       `json:"price_max,omitempty"`
	PriceUnit           *string        `json:"price_unit,omitempty"`
	PriceDescription    *string        `json:"price_description,omitempty"`
	ReEnrollmentDate    *string        `json:"re_enrollment_date,omitempty"`
	NewRegistrationDate *string        `json:"new_registration_date,omitempty"`
	SourceMetadata      map[string]any `json:"source_metadata,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateProgramSubmission checks a raw payload against the embedded JSON
// schema plus the semantic rules the schema cannot express, and returns the
// decoded submission.
func ValidateProgramSubmission(payload json.RawMessage) (*ProgramSubmission, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var submission ProgramSubmission
	if err := json.Unmarshal(normalized, &submission); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&submission); err != nil {
		return nil, err
	}

	return &submission, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("program_submission.schema.json", strings.NewReader(programSubmissionSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("program_submission.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(submission *ProgramSubmission) error {
	if submission == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(submission.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(submission.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	for i, category := range submission.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("categories[%d] must not be empty", i)
		}
	}

	if submission.WebsiteURL != nil {
		if err := validateURI("website_url", *submission.WebsiteURL); err != nil {
			return err
		}
	}
	if submission.RegistrationURL != nil {
		if err := validateURI("registration_url", *submission.RegistrationURL); err != nil {
			return err
		}
	}

	if submission.PriceMin != nil && submission.PriceMax != nil && *submission.PriceMin > *submission.PriceMax {
		return fmt.Errorf("price_min (%v) cannot exceed price_max (%v)", *submission.PriceMin, *submission.PriceMax)
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"re_enrollment_date", submission.ReEnrollmentDate},
		{"new_registration_date", submission.NewRegistrationDate},
	} {
		if field.value == nil {
			continue
		}
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(*field.value)); err != nil {
			return fmt.Errorf("%s must be a calendar date: %w", field.name, err)
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
