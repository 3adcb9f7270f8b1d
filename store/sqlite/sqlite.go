/*
Package sqlite provides a SQLite-backed implementation of the collaborator
interfaces.

PURPOSE:
  Implements the remote side of the session engine (mastersheet.RecordSource,
  mastersheet.SchemaSource) and the reference-data side of reconciliation
  (recon.MappingStore) using SQLite. In production against the hosted
  backend the same patterns apply - only the transport differs.

INTERFACES IMPLEMENTED:
  mastersheet.RecordSource: Paginated ledger reads, bulk versioned updates
  mastersheet.SchemaSource: Declared field types
  recon.MappingStore:       Insurer field mappings

VERSION CHECKS:
  Bulk updates run inside one database transaction but yield one verdict
  per record: an instruction whose base version no longer matches the
  stored row is rejected with the current version, while the other
  instructions in the same batch still commit. This mirrors the hosted
  backend's per-record results.

PAGINATION:
  Keyset pagination ordered by record_id. The cursor is the last record
  id of the previous page; an empty cursor requests the first page and
  an empty returned cursor marks the last.

KEY TABLES:
  fields:           Declared master-sheet schema
  records:          Master ledger rows (field values as JSON, version token)
  mapping_headers:  One row per insurer (policy key field)
  mapping_columns:  Ordered column translations per insurer

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block
  and crash recovery is cleaner.

USAGE:
  store, err := sqlite.New("./data/mastersheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - mastersheet/source.go: Interface definitions
  - mastersheet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// DefaultPageSize is used when a query does not request a limit.
const DefaultPageSize = 50

// Store implements the collaborator interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Declared master-sheet schema
	CREATE TABLE IF NOT EXISTS fields (
		field_id TEXT PRIMARY KEY,
		field_type TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);

	-- Master ledger rows
	CREATE TABLE IF NOT EXISTS records (
		record_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		fields_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Insurer mapping headers (one per insurer)
	CREATE TABLE IF NOT EXISTS mapping_headers (
		insurer TEXT PRIMARY KEY,
		policy_key TEXT NOT NULL
	);

	-- Ordered column translations per insurer
	CREATE TABLE IF NOT EXISTS mapping_columns (
		insurer TEXT NOT NULL,
		position INTEGER NOT NULL,
		source_column TEXT NOT NULL,
		field_id TEXT NOT NULL,
		rule TEXT NOT NULL DEFAULT '',
		date_layout TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (insurer, position),
		UNIQUE (insurer, field_id),
		FOREIGN KEY (insurer) REFERENCES mapping_headers(insurer) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEMA SOURCE
// =============================================================================

// ListFields returns the declared field types.
func (s *Store) ListFields(ctx context.Context) (mastersheet.FieldSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT field_id, field_type FROM fields ORDER BY position, field_id`)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	fs := make(mastersheet.FieldSet)
	for rows.Next() {
		var id, typ string
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fs[mastersheet.FieldID(id)] = mastersheet.FieldType(typ)
	}
	return fs, rows.Err()
}

// PutFields replaces the declared schema, preserving declaration order.
func (s *Store) PutFields(ctx context.Context, fields []mastersheet.FieldID, types mastersheet.FieldSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fields`); err != nil {
		return fmt.Errorf("clear fields: %w", err)
	}
	for i, f := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fields (field_id, field_type, position) VALUES (?, ?, ?)`,
			string(f), string(types[f]), i); err != nil {
			return fmt.Errorf("insert field %s: %w", f, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// RECORD SOURCE
// =============================================================================

// FetchPage returns one page of ledger records after the cursor.
func (s *Store) FetchPage(ctx context.Context, q mastersheet.Query, cursor mastersheet.Cursor) (mastersheet.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	// limit+1 probes for a next page without a second query.
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, version, fields_json
		FROM records
		WHERE record_id > ?
		ORDER BY record_id
		LIMIT ?`, string(cursor), limit+1)
	if err != nil {
		return mastersheet.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer rows.Close()

	var page mastersheet.Page
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return mastersheet.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return mastersheet.Page{}, err
	}
	if len(page.Records) > limit {
		page.Records = page.Records[:limit]
		page.Next = mastersheet.Cursor(page.Records[limit-1].ID)
	}
	return page, nil
}

// SubmitBulkUpdate applies a batch of versioned updates with one verdict
// per instruction.
func (s *Store) SubmitBulkUpdate(ctx context.Context, batch []mastersheet.UpdateInstruction) ([]mastersheet.RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk update: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	results := make([]mastersheet.RecordResult, 0, len(batch))
	for _, ins := range batch {
		var version int64
		var fieldsJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT version, fields_json FROM records WHERE record_id = ?`,
			string(ins.RecordID)).Scan(&version, &fieldsJSON)
		if err == sql.ErrNoRows {
			results = append(results, mastersheet.RecordResult{
				RecordID: ins.RecordID,
				Status:   mastersheet.StatusRejected,
				Reason:   "record not found",
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", ins.RecordID, err)
		}
		if version != ins.BaseVersion {
			results = append(results, mastersheet.RecordResult{
				RecordID:       ins.RecordID,
				Status:         mastersheet.StatusRejected,
				Reason:         "version conflict",
				CurrentVersion: version,
			})
			continue
		}

		fields := make(map[mastersheet.FieldID]mastersheet.Value)
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", ins.RecordID, err)
		}
		for f, v := range ins.Fields {
			fields[f] = v
		}
		merged, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", ins.RecordID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET version = version + 1, fields_json = ?, updated_at = ? WHERE record_id = ?`,
			string(merged), now, string(ins.RecordID)); err != nil {
			return nil, fmt.Errorf("update record %s: %w", ins.RecordID, err)
		}
		results = append(results, mastersheet.RecordResult{
			RecordID:   ins.RecordID,
			Status:     mastersheet.StatusCommitted,
			NewVersion: version + 1,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk update: %w", err)
	}
	return results, nil
}

// UpsertRecord inserts or replaces a ledger record (seeding and imports).
// A zero version is normalized to 1.
func (s *Store) UpsertRecord(ctx context.Context, rec mastersheet.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Version == 0 {
		rec.Version = 1
	}
	encoded, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (record_id, version, fields_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			version = excluded.version,
			fields_json = excluded.fields_json,
			updated_at = excluded.updated_at`,
		string(rec.ID), rec.Version, string(encoded), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// AllRecords returns every ledger record in ID order. Reconciliation runs
// use this as the master side.
func (s *Store) AllRecords(ctx context.Context) ([]mastersheet.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, version, fields_json FROM records ORDER BY record_id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []mastersheet.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (mastersheet.Record, error) {
	var id string
	var version int64
	var fieldsJSON string
	if err := rows.Scan(&id, &version, &fieldsJSON); err != nil {
		return mastersheet.Record{}, fmt.Errorf("scan record: %w", err)
	}
	fields := make(map[mastersheet.FieldID]mastersheet.Value)
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return mastersheet.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return mastersheet.Record{ID: mastersheet.RecordID(id), Version: version, Fields: fields}, nil
}

// =============================================================================
// MAPPING STORE
// =============================================================================

// GetMapping loads one insurer's field mapping.
func (s *Store) GetMapping(ctx context.Context, insurer string) (recon.InsurerFieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policyKey string
	err := s.db.QueryRowContext(ctx,
		`SELECT policy_key FROM mapping_headers WHERE insurer = ?`, insurer).Scan(&policyKey)
	if err == sql.ErrNoRows {
		return recon.InsurerFieldMapping{}, recon.ErrUnknownInsurer
	}
	if err != nil {
		return recon.InsurerFieldMapping{}, fmt.Errorf("load mapping %q: %w", insurer, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_column, field_id, rule, date_layout
		FROM mapping_columns
		WHERE insurer = ?
		ORDER BY position`, insurer)
	if err != nil {
		return recon.InsurerFieldMapping{}, fmt.Errorf("load mapping columns %q: %w", insurer, err)
	}
	defer rows.Close()

	m := recon.InsurerFieldMapping{
		Insurer:   insurer,
		PolicyKey: mastersheet.FieldID(policyKey),
	}
	for rows.Next() {
		var source, field, rule, layout string
		if err := rows.Scan(&source, &field, &rule, &layout); err != nil {
			return recon.InsurerFieldMapping{}, fmt.Errorf("scan mapping column: %w", err)
		}
		m.Columns = append(m.Columns, recon.ColumnMapping{
			Source:     source,
			Field:      mastersheet.FieldID(field),
			Rule:       recon.Rule(rule),
			DateLayout: layout,
		})
	}
	return m, rows.Err()
}

// PutMapping stores or replaces one insurer's field mapping.
func (s *Store) PutMapping(ctx context.Context, m recon.InsurerFieldMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mapping_headers (insurer, policy_key) VALUES (?, ?)
		ON CONFLICT(insurer) DO UPDATE SET policy_key = excluded.policy_key`,
		m.Insurer, string(m.PolicyKey)); err != nil {
		return fmt.Errorf("store mapping header %q: %w", m.Insurer, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mapping_columns WHERE insurer = ?`, m.Insurer); err != nil {
		return fmt.Errorf("clear mapping columns %q: %w", m.Insurer, err)
	}
	for i, c := range m.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mapping_columns (insurer, position, source_column, field_id, rule, date_layout)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.Insurer, i, c.Source, string(c.Field), string(c.Rule), c.DateLayout); err != nil {
			return fmt.Errorf("store mapping column %q/%q: %w", m.Insurer, c.Source, err)
		}
	}
	return tx.Commit()
}
