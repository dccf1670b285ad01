package db

import (
	"encoding/json"
	"time"
)

// Program maps catalog.programs, one listing per enrichment program.
type Program struct {
	ProgramID           int64           `gorm:"column:program_id;primaryKey;autoIncrement"`
	ProgramUUID         string          `gorm:"column:program_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name                string          `gorm:"column:name;type:text;not null"`
	Description         string          `gorm:"column:description;type:text;not null;default:''"`
	Categories          json.RawMessage `gorm:"column:categories;type:jsonb"`
	Address             *string         `gorm:"column:address;type:text"`
	Neighborhood        *string         `gorm:"column:neighborhood;type:text"`
	ContactEmail        *string         `gorm:"column:contact_email;type:text"`
	ContactPhone        *string         `gorm:"column:contact_phone;type:text"`
	WebsiteURL          *string         `gorm:"column:website_url;type:text"`
	RegistrationURL     *string         `gorm:"column:registration_url;type:text"`
	OperatingDays       json.RawMessage `gorm:"column:operating_days;type:jsonb"`
	PriceMin            *float64        `gorm:"column:price_min;type:double precision"`
	PriceMax            *float64        `gorm:"column:price_max;type:double precision"`
	PriceUnit           *string         `gorm:"column:price_unit;type:text"`
	PriceDescription    *string         `gorm:"column:price_description;type:text"`
	Language            string          `gorm:"column:language;type:text;not null;default:und"`
	ReEnrollmentDate    *time.Time      `gorm:"column:re_enrollment_date;type:date"`
	NewRegistrationDate *time.Time      `gorm:"column:new_registration_date;type:date"`
	MergedInto          *int64          `gorm:"column:merged_into;type:bigint"`
	DeletedAt           *time.Time      `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Program) TableName() string { return "catalog.programs" }

// ProgramLocation maps catalog.program_locations, a dependent table
// re-pointed during record consolidation.
type ProgramLocation struct {
	LocationID   int64     `gorm:"column:location_id;primaryKey;autoIncrement"`
	LocationUUID string    `gorm:"column:location_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProgramID    int64     `gorm:"column:program_id;type:bigint;not null"`
	Address      string    `gorm:"column:address;type:text;not null"`
	Neighborhood *string   `gorm:"column:neighborhood;type:text"`
	Latitude     *float64  `gorm:"column:latitude;type:double precision"`
	Longitude    *float64  `gorm:"column:longitude;type:double precision"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ProgramLocation) TableName() string { return "catalog.program_locations" }

// ProgramReview maps catalog.program_reviews, also re-pointed on merge.
type ProgramReview struct {
	ReviewID   int64     `gorm:"column:review_id;primaryKey;autoIncrement"`
	ReviewUUID string    `gorm:"column:review_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProgramID  int64     `gorm:"column:program_id;type:bigint;not null"`
	Rating     int16     `gorm:"column:rating;type:smallint;not null"`
	Body       string    `gorm:"column:body;type:text;not null;default:''"`
	Author     *string   `gorm:"column:author;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ProgramReview) TableName() string { return "catalog.program_reviews" }

// MergeEvent maps catalog.merge_events, the audit ledger written by the
// consolidation executor: one row per processed item.
type MergeEvent struct {
	MergeEventID   int64     `gorm:"column:merge_event_id;primaryKey;autoIncrement"`
	BatchUUID      string    `gorm:"column:batch_uuid;type:uuid;not null"`
	Kind           string    `gorm:"column:kind;type:text;not null"`
	VariantID      *int64    `gorm:"column:variant_id;type:bigint"`
	CanonicalID    *int64    `gorm:"column:canonical_id;type:bigint"`
	Field          *string   `gorm:"column:field;type:text"`
	VariantValue   *string   `gorm:"column:variant_value;type:text"`
	CanonicalValue *string   `gorm:"column:canonical_value;type:text"`
	Success        bool      `gorm:"column:success;type:boolean;not null"`
	NoOp           bool      `gorm:"column:no_op;type:boolean;not null;default:false"`
	RowsReassigned int64     `gorm:"column:rows_reassigned;type:bigint;not null;default:0"`
	RowsUpdated    int64     `gorm:"column:rows_updated;type:bigint;not null;default:0"`
	Message        string    `gorm:"column:message;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MergeEvent) TableName() string { return "catalog.merge_events" }

func autoMigrateModels() []any {
	return []any{
		&Program{},
		&ProgramLocation{},
		&ProgramReview{},
		&MergeEvent{},
	}
}
