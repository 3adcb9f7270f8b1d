// Package store provides in-memory collaborator implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// =============================================================================
// MEMORY SOURCE - In-memory ledger backend (for testing/dev)
// =============================================================================

// Memory implements mastersheet.RecordSource, mastersheet.SchemaSource and
// recon.MappingStore against process memory. Pagination is keyset-style
// over record IDs in lexical order, matching the SQLite implementation.
type Memory struct {
	mu       sync.RWMutex
	fields   mastersheet.FieldSet
	records  map[mastersheet.RecordID]mastersheet.Record
	mappings map[string]recon.InsurerFieldMapping
	pageSize int
}

// NewMemory returns an empty source with the given default page size.
func NewMemory(pageSize int) *Memory {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Memory{
		fields:   make(mastersheet.FieldSet),
		records:  make(map[mastersheet.RecordID]mastersheet.Record),
		mappings: make(map[string]recon.InsurerFieldMapping),
		pageSize: pageSize,
	}
}

// =============================================================================
// SEEDING
// =============================================================================

// SetFields replaces the declared schema.
func (m *Memory) SetFields(fs mastersheet.FieldSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(mastersheet.FieldSet, len(fs))
	for k, v := range fs {
		m.fields[k] = v
	}
}

// PutRecord inserts or replaces a ledger record. A zero version is
// normalized to 1.
func (m *Memory) PutRecord(rec mastersheet.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Version == 0 {
		rec.Version = 1
	}
	m.records[rec.ID] = rec.Clone()
}

// PutMapping registers an insurer mapping.
func (m *Memory) PutMapping(mapping recon.InsurerFieldMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mapping.Insurer] = mapping
}

// Record returns a copy of one stored record, for assertions.
func (m *Memory) Record(id mastersheet.RecordID) (mastersheet.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return mastersheet.Record{}, false
	}
	return rec.Clone(), true
}

// =============================================================================
// RECORD SOURCE
// =============================================================================

// FetchPage returns records after the cursor in lexical ID order.
func (m *Memory) FetchPage(_ context.Context, q mastersheet.Query, cursor mastersheet.Cursor) (mastersheet.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = m.pageSize
	}

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		if string(id) > string(cursor) {
			ids = append(ids, string(id))
		}
	}
	sort.Strings(ids)

	page := mastersheet.Page{}
	for _, id := range ids {
		if len(page.Records) == limit {
			page.Next = mastersheet.Cursor(page.Records[limit-1].ID)
			break
		}
		page.Records = append(page.Records, m.records[mastersheet.RecordID(id)].Clone())
	}
	return page, nil
}

// SubmitBulkUpdate applies each instruction independently: a version
// mismatch rejects that record only, committed neighbours stand.
func (m *Memory) SubmitBulkUpdate(_ context.Context, batch []mastersheet.UpdateInstruction) ([]mastersheet.RecordResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]mastersheet.RecordResult, 0, len(batch))
	for _, ins := range batch {
		rec, ok := m.records[ins.RecordID]
		if !ok {
			results = append(results, mastersheet.RecordResult{
				RecordID: ins.RecordID,
				Status:   mastersheet.StatusRejected,
				Reason:   "record not found",
			})
			continue
		}
		if rec.Version != ins.BaseVersion {
			results = append(results, mastersheet.RecordResult{
				RecordID:       ins.RecordID,
				Status:         mastersheet.StatusRejected,
				Reason:         "version conflict",
				CurrentVersion: rec.Version,
			})
			continue
		}
		for f, v := range ins.Fields {
			rec.Fields[f] = v
		}
		rec.Version++
		m.records[ins.RecordID] = rec
		results = append(results, mastersheet.RecordResult{
			RecordID:   ins.RecordID,
			Status:     mastersheet.StatusCommitted,
			NewVersion: rec.Version,
		})
	}
	return results, nil
}

// =============================================================================
// SCHEMA SOURCE
// =============================================================================

func (m *Memory) ListFields(_ context.Context) (mastersheet.FieldSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(mastersheet.FieldSet, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out, nil
}

// =============================================================================
// MAPPING STORE
// =============================================================================

func (m *Memory) GetMapping(_ context.Context, insurer string) (recon.InsurerFieldMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mapping, ok := m.mappings[insurer]
	if !ok {
		return recon.InsurerFieldMapping{}, recon.ErrUnknownInsurer
	}
	return mapping, nil
}
