/*
buffer.go - Pending edit buffer

PURPOSE:
  Holds every uncommitted cell edit for the session, keyed by
  (record id, field id), independent of which page the record currently
  occupies. The buffer knows nothing about rendering; its size is
  observable so callers can gate "unsaved changes" prompts.

INVARIANTS:
  - At most one PendingEdit per (record, field) pair; a newer edit
    overwrites the prior one.
  - An edit leaves the buffer only on successful commit of a snapshot
    containing it, or on explicit discard. Never silently.
  - Snapshot() returns an immutable copy and does NOT clear; clearing on
    success is the commit coordinator's job (see session.go).

SEE ALSO:
  - session.go: Takes snapshots and clears committed pairs
  - schema.go: Validation applied before SetEdit stores anything
*/
package mastersheet

import "time"

// EditBuffer holds uncommitted field-level edits. Methods are not safe
// for concurrent use; the Session serializes access.
type EditBuffer struct {
	edits map[EditKey]PendingEdit
}

// NewEditBuffer returns an empty buffer.
func NewEditBuffer() *EditBuffer {
	return &EditBuffer{edits: make(map[EditKey]PendingEdit)}
}

// Set inserts or overwrites the pending edit for the pair.
func (b *EditBuffer) Set(recordID RecordID, fieldID FieldID, v Value) {
	b.edits[EditKey{recordID, fieldID}] = PendingEdit{
		RecordID: recordID,
		FieldID:  fieldID,
		Value:    v,
		EditedAt: time.Now().UTC(),
	}
}

// Pending returns all pending field values for a record.
func (b *EditBuffer) Pending(recordID RecordID) map[FieldID]Value {
	out := make(map[FieldID]Value)
	for k, e := range b.edits {
		if k.RecordID == recordID {
			out[k.FieldID] = e.Value
		}
	}
	return out
}

// Discard removes the pending edits for the given fields of a record,
// or every edit for the record when no fields are given.
func (b *EditBuffer) Discard(recordID RecordID, fields ...FieldID) {
	if len(fields) == 0 {
		for k := range b.edits {
			if k.RecordID == recordID {
				delete(b.edits, k)
			}
		}
		return
	}
	for _, f := range fields {
		delete(b.edits, EditKey{recordID, f})
	}
}

// Snapshot returns an immutable copy of the buffer contents. The buffer
// itself is left intact.
func (b *EditBuffer) Snapshot() map[EditKey]PendingEdit {
	snap := make(map[EditKey]PendingEdit, len(b.edits))
	for k, e := range b.edits {
		snap[k] = e
	}
	return snap
}

// Len is the number of pending edits, observable for unsaved-changes UI.
func (b *EditBuffer) Len() int { return len(b.edits) }

// clearPairs removes exactly the given pairs. An edit recorded after the
// snapshot was taken has a newer EditedAt and is kept: it represents
// input the commit never saw.
func (b *EditBuffer) clearPairs(snap map[EditKey]PendingEdit) {
	for k, snapped := range snap {
		current, ok := b.edits[k]
		if !ok {
			continue
		}
		if current.EditedAt.After(snapped.EditedAt) || current.Value != snapped.Value {
			continue
		}
		delete(b.edits, k)
	}
}
