/*
Package mastersheet implements the editable master-sheet session engine.

PURPOSE:
  This package contains the client-session state for the insurance master
  ledger: the server-confirmed record cache, the buffer of uncommitted
  cell edits, the pagination merge rule, and the bulk commit coordinator
  that reconciles the two against the remote record source.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: One row of the master ledger, with a server version token
  - Value: A raw cell value; the field schema decides how it is read
  - Page: One fetched slice of the ledger plus the next-page cursor
  - PendingEdit: An uncommitted (record, field, value) tuple
  - UpdateInstruction / RecordResult: The bulk-update wire contract

DESIGN PRINCIPLES:
  1. Separation: pending edits never touch cached records; the two are
     joined only at read time (see Session.Effective)
  2. Versioning: every committed update carries the version the client
     saw, so the server can reject concurrent modifications per record
  3. Type Safety: strong typing for record and field identifiers

SEE ALSO:
  - buffer.go: Pending edit buffer
  - cache.go: Record cache and pagination merge
  - session.go: Commit coordination
  - source.go: External collaborator interfaces
*/
package mastersheet

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// RecordID is the stable, opaque identifier of a ledger row.
type RecordID string

// FieldID is the master sheet's canonical name for a data column,
// independent of any insurer's upload format.
type FieldID string

// Cursor is an opaque next-page token. Empty means no further pages.
type Cursor string

// =============================================================================
// FIELD TYPES AND VALUES
// =============================================================================

// FieldType is the declared type of a master-sheet column.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeEnum   FieldType = "enum"
)

// DateLayout is the canonical layout for date-typed master values.
const DateLayout = "2006-01-02"

// Value is a raw cell value as stored in the ledger. Interpretation is
// driven by the field's declared type, not by the value itself.
type Value string

func (v Value) String() string { return string(v) }

// Number parses the value as a decimal, tolerating thousands separators.
func (v Value) Number() (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(v)), ",", "")
	return decimal.NewFromString(s)
}

// Date parses the value using the canonical master-sheet layout.
func (v Value) Date() (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(string(v)))
}

// =============================================================================
// RECORD - One row of the master ledger
// =============================================================================

// Record is a single ledger row. Records are owned by the RecordCache and
// are mutated only by committed bulk updates, never by the edit buffer.
type Record struct {
	ID      RecordID
	Fields  map[FieldID]Value
	Version int64
}

// Clone returns a deep copy. The cache hands out clones so callers can
// never reach into authoritative state.
func (r Record) Clone() Record {
	fields := make(map[FieldID]Value, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields, Version: r.Version}
}

// Get returns the value of a field and whether it is present.
func (r Record) Get(f FieldID) (Value, bool) {
	v, ok := r.Fields[f]
	return v, ok
}

// =============================================================================
// PAGE - One fetched slice of the ledger
// =============================================================================

// Page is an ordered sequence of records plus the cursor for the next
// page. An empty cursor marks the last page.
type Page struct {
	Records []Record
	Next    Cursor
}

// Query carries the fetch parameters for one logical record listing.
type Query struct {
	// Limit is the requested page size. Zero lets the source choose.
	Limit int
}

// =============================================================================
// PENDING EDIT
// =============================================================================

// PendingEdit is one uncommitted cell edit. At most one exists per
// (record, field) pair; a newer edit overwrites the prior one.
type PendingEdit struct {
	RecordID RecordID
	FieldID  FieldID
	Value    Value
	EditedAt time.Time
}

// EditKey identifies one (record, field) pair.
type EditKey struct {
	RecordID RecordID
	FieldID  FieldID
}

// =============================================================================
// BULK UPDATE WIRE CONTRACT
// =============================================================================

// UpdateInstruction is one record's worth of changed fields, along with
// the version the client last saw for that record. The record source
// rejects the instruction if the ledger has moved past BaseVersion.
type UpdateInstruction struct {
	RecordID    RecordID
	BaseVersion int64
	Fields      map[FieldID]Value
}

// ResultStatus is the per-record outcome of a bulk update.
type ResultStatus string

const (
	StatusCommitted ResultStatus = "committed"
	StatusRejected  ResultStatus = "rejected"
)

// RecordResult is the record source's verdict on one UpdateInstruction.
type RecordResult struct {
	RecordID RecordID
	Status   ResultStatus

	// NewVersion is set when Status is committed.
	NewVersion int64

	// Reason and CurrentVersion are set when Status is rejected.
	Reason         string
	CurrentVersion int64
}
