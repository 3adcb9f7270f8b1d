/*
cache.go - Record cache and pagination merge

PURPOSE:
  Holds the authoritative, server-confirmed record set for the session as
  one logical ordered sequence assembled from successive pages. The merge
  rule makes no assumption about server-side total ordering: a record
  already seen keeps its original position and is replaced in place by
  the newer fetched version; unseen records append at the end.

IMPLEMENTATION:
  Ordered slice of record IDs plus an id->index map, so a refetched page
  costs O(page) lookups instead of repeated full-list scans.

SEE ALSO:
  - session.go: Drives fetching and applies committed updates
*/
package mastersheet

// RecordCache is the server-confirmed record set, keyed by record ID with
// deterministic first-seen ordering. Not safe for concurrent use; the
// Session serializes access.
type RecordCache struct {
	order   []RecordID
	index   map[RecordID]int
	records map[RecordID]Record
	next    Cursor
	started bool
}

// NewRecordCache returns an empty cache.
func NewRecordCache() *RecordCache {
	return &RecordCache{
		index:   make(map[RecordID]int),
		records: make(map[RecordID]Record),
	}
}

// AppendPage merges a fetched page into the sequence. Records already in
// the sequence are replaced in place with the newer fetched version;
// new records are appended in page order.
func (c *RecordCache) AppendPage(p Page) {
	for _, rec := range p.Records {
		if _, seen := c.index[rec.ID]; seen {
			c.records[rec.ID] = rec.Clone()
			continue
		}
		c.index[rec.ID] = len(c.order)
		c.order = append(c.order, rec.ID)
		c.records[rec.ID] = rec.Clone()
	}
	c.next = p.Next
	c.started = true
}

// NextCursor is the cursor for the next fetch. Empty once exhausted.
func (c *RecordCache) NextCursor() Cursor { return c.next }

// Exhausted reports whether the last fetched page carried no next cursor.
func (c *RecordCache) Exhausted() bool { return c.started && c.next == "" }

// Get returns a copy of the cached record.
func (c *RecordCache) Get(id RecordID) (Record, bool) {
	rec, ok := c.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// All returns copies of every cached record in first-seen order.
func (c *RecordCache) All() []Record {
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id].Clone())
	}
	return out
}

// Len is the number of cached records.
func (c *RecordCache) Len() int { return len(c.order) }

// applyCommitted merges committed field values into a record and bumps
// its version token. Called only from the commit coordinator with a
// fully successful per-record result.
func (c *RecordCache) applyCommitted(id RecordID, fields map[FieldID]Value, newVersion int64) {
	rec, ok := c.records[id]
	if !ok {
		return
	}
	for f, v := range fields {
		rec.Fields[f] = v
	}
	rec.Version = newVersion
	c.records[id] = rec
}
