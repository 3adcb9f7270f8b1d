/*
session.go - Session engine and bulk commit coordination

PURPOSE:
  Session ties the record cache, the pending edit buffer, and the record
  source together for one logical consumer. It serializes all local
  mutations, drives pagination, overlays pending edits at read time
  ("effective record"), and coordinates batched commits.

COMMIT SEMANTICS:
  1. Snapshot the buffer (EmptyCommit if nothing pending)
  2. Group the snapshot into one UpdateInstruction per record, carrying
     only that record's changed fields and its last-seen version
  3. Submit the batch as a single request
  4. Committed records: merge fields into the cache, bump the version,
     clear exactly the snapshot's pairs; edits made after the snapshot
     survive untouched
  5. Rejected records: pending edits retained, surfaced as ConflictError
  6. Transport failure: buffer and cache untouched, retryable error

  Clearing and acceptance are atomic per record: a rejected record never
  loses any of its pending edits.

CONCURRENCY:
  One commit runs at a time (later calls block on commitMu). New edits
  may accumulate while a commit is in flight; the suspension points are
  the network calls only, and a cancelled call never mutates local state.

SEE ALSO:
  - buffer.go, cache.go: The two keyed mappings joined here
  - source.go: The remote collaborators
*/
package mastersheet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Session is the single-consumer editing session over the master ledger.
type Session struct {
	// mu guards all local state; it is never held across a network call.
	// commitMu serializes whole commits so a commit in flight blocks
	// later commit invocations while edits keep accumulating under mu.
	mu       sync.Mutex
	commitMu sync.Mutex

	source RecordSource
	schema FieldSet
	cache  *RecordCache
	buffer *EditBuffer
	query  Query
	logger *zap.Logger
}

// NewSession creates a session over the given source. The field schema is
// loaded once up front; edits are validated against it for the session's
// lifetime.
func NewSession(ctx context.Context, source RecordSource, schemaSrc SchemaSource, q Query, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := schemaSrc.ListFields(ctx)
	if err != nil {
		return nil, &TransportError{Op: "fetch", Cause: err}
	}
	return &Session{
		source: source,
		schema: schema,
		cache:  NewRecordCache(),
		buffer: NewEditBuffer(),
		query:  q,
		logger: logger,
	}, nil
}

// Schema returns the declared field types for the session.
func (s *Session) Schema() FieldSet {
	out := make(FieldSet, len(s.schema))
	for k, v := range s.schema {
		out[k] = v
	}
	return out
}

// =============================================================================
// PAGINATION
// =============================================================================

// LoadNextPage fetches and merges the next page. It is a no-op returning
// false once the listing is exhausted; true means more records arrived.
func (s *Session) LoadNextPage(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.cache.Exhausted() {
		s.mu.Unlock()
		return false, nil
	}
	cursor := s.cache.NextCursor()
	s.mu.Unlock()

	// Suspension point: no locks held across the fetch.
	page, err := s.source.FetchPage(ctx, s.query, cursor)
	if err != nil {
		return false, &TransportError{Op: "fetch", Cause: err}
	}

	s.mu.Lock()
	s.cache.AppendPage(page)
	s.mu.Unlock()
	return len(page.Records) > 0, nil
}

// Exhausted reports whether the last fetched page carried no next cursor.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Exhausted()
}

// Records returns the merged sequence in first-seen order.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.All()
}

// =============================================================================
// EDITING
// =============================================================================

// SetEdit validates and stores one cell edit. The record must already be
// in the cache and the value must match the field's declared type.
func (s *Session) SetEdit(recordID RecordID, fieldID FieldID, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(recordID); !ok {
		return fmt.Errorf("set edit %s.%s: %w", recordID, fieldID, ErrUnknownRecord)
	}
	if err := s.schema.Validate(recordID, fieldID, v); err != nil {
		return err
	}
	s.buffer.Set(recordID, fieldID, v)
	return nil
}

// Discard drops pending edits for a record, or for specific fields of it.
func (s *Session) Discard(recordID RecordID, fields ...FieldID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Discard(recordID, fields...)
}

// PendingCount is the number of uncommitted edits.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Len()
}

// PendingEdits returns every pending edit, ordered by record then field.
func (s *Session) PendingEdits() []PendingEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.buffer.Snapshot()
	out := make([]PendingEdit, 0, len(snap))
	for _, e := range snap {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordID != out[j].RecordID {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].FieldID < out[j].FieldID
	})
	return out
}

// Effective returns the record as the user sees it before commit: the
// cached value overridden by the pending value where one exists.
func (s *Session) Effective(recordID RecordID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache.Get(recordID)
	if !ok {
		return Record{}, fmt.Errorf("effective %s: %w", recordID, ErrUnknownRecord)
	}
	for f, v := range s.buffer.Pending(recordID) {
		rec.Fields[f] = v
	}
	return rec, nil
}

// EffectiveAll returns every cached record with pending edits overlaid,
// in first-seen order.
func (s *Session) EffectiveAll() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cache.All()
	for i := range out {
		for f, v := range s.buffer.Pending(out[i].ID) {
			out[i].Fields[f] = v
		}
	}
	return out
}

// =============================================================================
// COMMIT
// =============================================================================

// CommitResult is the outcome of one batched commit.
type CommitResult struct {
	// Committed maps each accepted record to its new version token.
	Committed map[RecordID]int64

	// Rejected holds one ConflictError per record the server refused.
	// Their pending edits remain in the buffer.
	Rejected []*ConflictError
}

// Commit snapshots the buffer and submits it as one batched update.
// Later Commit calls block until the in-flight one resolves.
func (s *Session) Commit(ctx context.Context) (CommitResult, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	snap := s.buffer.Snapshot()
	if len(snap) == 0 {
		s.mu.Unlock()
		return CommitResult{}, ErrEmptyCommit
	}
	batch := s.buildBatch(snap)
	s.mu.Unlock()

	// Suspension point: no locks held across the submit. Abandonment via
	// ctx leaves the buffer and cache exactly as they were.
	results, err := s.source.SubmitBulkUpdate(ctx, batch)
	if err != nil {
		s.logger.Warn("bulk update failed", zap.Int("records", len(batch)), zap.Error(err))
		return CommitResult{}, &TransportError{Op: "commit", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byRecord := make(map[RecordID]map[FieldID]Value, len(batch))
	for _, ins := range batch {
		byRecord[ins.RecordID] = ins.Fields
	}

	res := CommitResult{Committed: make(map[RecordID]int64)}
	for _, r := range results {
		switch r.Status {
		case StatusCommitted:
			s.cache.applyCommitted(r.RecordID, byRecord[r.RecordID], r.NewVersion)
			s.buffer.clearPairs(recordPairs(snap, r.RecordID))
			res.Committed[r.RecordID] = r.NewVersion
		case StatusRejected:
			res.Rejected = append(res.Rejected, &ConflictError{
				RecordID:       r.RecordID,
				CurrentVersion: r.CurrentVersion,
				Reason:         r.Reason,
			})
		}
	}
	sort.Slice(res.Rejected, func(i, j int) bool {
		return res.Rejected[i].RecordID < res.Rejected[j].RecordID
	})
	s.logger.Info("commit resolved",
		zap.Int("committed", len(res.Committed)),
		zap.Int("rejected", len(res.Rejected)))
	return res, nil
}

// buildBatch groups a snapshot into one instruction per record, carrying
// the version the cache last saw for it. Caller holds mu.
func (s *Session) buildBatch(snap map[EditKey]PendingEdit) []UpdateInstruction {
	grouped := make(map[RecordID]map[FieldID]Value)
	for k, e := range snap {
		if grouped[k.RecordID] == nil {
			grouped[k.RecordID] = make(map[FieldID]Value)
		}
		grouped[k.RecordID][k.FieldID] = e.Value
	}
	batch := make([]UpdateInstruction, 0, len(grouped))
	for id, fields := range grouped {
		base := int64(0)
		if rec, ok := s.cache.Get(id); ok {
			base = rec.Version
		}
		batch = append(batch, UpdateInstruction{RecordID: id, BaseVersion: base, Fields: fields})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].RecordID < batch[j].RecordID })
	return batch
}

// recordPairs filters a snapshot down to one record's pairs.
func recordPairs(snap map[EditKey]PendingEdit, id RecordID) map[EditKey]PendingEdit {
	out := make(map[EditKey]PendingEdit)
	for k, e := range snap {
		if k.RecordID == id {
			out[k] = e
		}
	}
	return out
}
