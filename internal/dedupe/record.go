// Package dedupe groups live catalog records into duplicate sets and merges
// each set into a canonical survivor.
package dedupe

import (
	"strings"
	"time"
)

// FieldKind tags the value stored in a FieldValue. The field bag is a
// structured map rather than reflection over a model struct, so the set of
// fields that count toward richness is explicit and testable.
type FieldKind int

const (
	FieldAbsent FieldKind = iota
	FieldString
	FieldNumber
	FieldBool
	FieldList
)

// FieldValue is one persisted field of a record, opaque to matching and used
// only for richness scoring.
type FieldValue struct {
	Kind   FieldKind
	Text   string
	Number float64
	Bool   bool
	List   []string
}

func StringField(v string) FieldValue  { return FieldValue{Kind: FieldString, Text: v} }
func NumberField(v float64) FieldValue { return FieldValue{Kind: FieldNumber, Number: v} }
func BoolField(v bool) FieldValue      { return FieldValue{Kind: FieldBool, Bool: v} }
func ListField(v []string) FieldValue  { return FieldValue{Kind: FieldList, List: v} }

// Populated reports whether the field carries semantic content: non-blank
// strings, any present number or bool, collections with at least one element.
func (v FieldValue) Populated() bool {
	switch v.Kind {
	case FieldString:
		return strings.TrimSpace(v.Text) != ""
	case FieldNumber, FieldBool:
		return true
	case FieldList:
		return len(v.List) > 0
	default:
		return false
	}
}

// Record is a catalog entry as the dedup core sees it. Fields excludes the
// primary key and audit timestamps; those never count toward richness.
type Record struct {
	ID         int64
	UUID       string
	Name       string
	Categories []string
	Fields     map[string]FieldValue
	CreatedAt  time.Time
	MergedInto *int64
}

// Live reports whether the record is still part of the comparison universe.
// A record marked merged-away must never be screened or swept again.
func (r Record) Live() bool {
	return r.MergedInto == nil
}

// Group is a set of records judged equivalent, with the chosen survivor.
type Group struct {
	Canonical Record
	Variants  []Record
}

// Members returns canonical plus variants.
func (g Group) Members() []Record {
	members := make([]Record, 0, len(g.Variants)+1)
	members = append(members, g.Canonical)
	members = append(members, g.Variants...)
	return members
}

// ValueGroup is a cluster of raw string values for one text attribute, with
// the canonical spelling and per-value usage counts.
type ValueGroup struct {
	Canonical string
	Variants  []string
	Usage     map[string]int64
}
