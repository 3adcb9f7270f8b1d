/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the session engine, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RecordDTO is one master-sheet row in API responses. Fields are the
// effective values: committed state overlaid with the caller's pending
// edits.
type RecordDTO struct {
	ID      string            `json:"id"`
	Version int64             `json:"version"`
	Fields  map[string]string `json:"fields"`
}

// FieldDTO is one declared column of the master sheet.
type FieldDTO struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// PageResponse reports the result of loading the next page.
type PageResponse struct {
	Loaded    int  `json:"loaded"`
	Total     int  `json:"total"`
	Exhausted bool `json:"exhausted"`
}

// SetEditRequest stores one cell edit.
type SetEditRequest struct {
	RecordID string `json:"record_id"`
	FieldID  string `json:"field_id"`
	Value    string `json:"value"`
}

// DiscardRequest drops pending edits. With no field ids, every edit for
// the record goes.
type DiscardRequest struct {
	RecordID string   `json:"record_id"`
	FieldIDs []string `json:"field_ids,omitempty"`
}

// PendingEditDTO is one uncommitted edit.
type PendingEditDTO struct {
	RecordID string `json:"record_id"`
	FieldID  string `json:"field_id"`
	Value    string `json:"value"`
	EditedAt string `json:"edited_at"`
}

// PendingResponse lists the buffer contents and its observable size.
type PendingResponse struct {
	Count int              `json:"count"`
	Edits []PendingEditDTO `json:"edits"`
}

// RejectedDTO is one record the server refused during a commit.
type RejectedDTO struct {
	RecordID       string `json:"record_id"`
	CurrentVersion int64  `json:"current_version"`
	Reason         string `json:"reason"`
}

// CommitResponse is the per-record outcome of a batched commit.
type CommitResponse struct {
	Committed map[string]int64 `json:"committed"`
	Rejected  []RejectedDTO    `json:"rejected"`
	Remaining int              `json:"remaining_pending"`
}

// RunRequest starts a reconciliation run.
type RunRequest struct {
	Insurer string `json:"insurer"`
	FileRef string `json:"file_ref"`
}

// RunDTO is a completed reconciliation run; the report passes through.
type RunDTO struct {
	ID          string       `json:"id"`
	Insurer     string       `json:"insurer"`
	FileRef     string       `json:"file_ref"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at"`
	Report      recon.Report `json:"report"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRecordDTO(rec mastersheet.Record) RecordDTO {
	fields := make(map[string]string, len(rec.Fields))
	for f, v := range rec.Fields {
		fields[string(f)] = string(v)
	}
	return RecordDTO{ID: string(rec.ID), Version: rec.Version, Fields: fields}
}

func toCommitResponse(res mastersheet.CommitResult, remaining int) CommitResponse {
	out := CommitResponse{
		Committed: make(map[string]int64, len(res.Committed)),
		Rejected:  make([]RejectedDTO, 0, len(res.Rejected)),
		Remaining: remaining,
	}
	for id, v := range res.Committed {
		out.Committed[string(id)] = v
	}
	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, RejectedDTO{
			RecordID:       string(rej.RecordID),
			CurrentVersion: rej.CurrentVersion,
			Reason:         rej.Reason,
		})
	}
	return out
}
