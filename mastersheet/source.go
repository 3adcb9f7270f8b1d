/*
source.go - External collaborator interfaces

PURPOSE:
  Defines the boundary between the session engine and the hosted backend.
  The engine only ever sees these interfaces; implementations live in
  mastersheet/store (in-memory) and store/sqlite (persistent).

CONTRACT NOTES:
  SubmitBulkUpdate returns one RecordResult per instruction. A rejected
  result is a verdict, not a transport failure: the call as a whole
  succeeded and committed instructions in the same batch stand. Only an
  error return means the batch reached no verdict at all.

SEE ALSO:
  - mastersheet/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package mastersheet

import "context"

// RecordSource is the paginated read/bulk-write view of the master ledger.
type RecordSource interface {
	// FetchPage returns one page of records. An empty cursor requests
	// the first page; the returned page's cursor is empty on the last.
	FetchPage(ctx context.Context, q Query, cursor Cursor) (Page, error)

	// SubmitBulkUpdate applies a batch of per-record updates and returns
	// one result per instruction, committed or rejected. An error return
	// means no verdict was reached and nothing may be assumed applied.
	SubmitBulkUpdate(ctx context.Context, batch []UpdateInstruction) ([]RecordResult, error)
}

// SchemaSource supplies the declared field types used to validate edits.
type SchemaSource interface {
	ListFields(ctx context.Context) (FieldSet, error)
}
