package docstore

import (
	"slices"
	"time"
)

// AppendAudit appends an entry to the audit log collection, then trims the
// log to the newest AuditLimit entries by event time. The log behaves as a
// capped ring buffer rather than an append-only ledger: audit volume is
// expected to exceed the useful retention window.
//
// The whole in-memory sequence is re-sorted by timestamp on every append so
// that entries recorded slightly out of chronological order (clock skew,
// delayed writers) are still evicted oldest-first by event time rather than
// by insertion time.
func (s *Store) AppendAudit(entry Document) (Document, error) {
	name := s.auditCollection
	mu, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()

	docs, err := s.loadCollection(name)
	if err != nil {
		return nil, err
	}
	stored := entry.Clone()
	if stored == nil {
		stored = Document{}
	}
	now := timestamp()
	if stored.ID() == "" {
		stored["_id"] = newDocumentID()
	}
	if _, ok := stored["timestamp"]; !ok {
		stored["timestamp"] = now
	}
	if _, ok := stored["createdAt"]; !ok {
		stored["createdAt"] = now
	}
	stored["updatedAt"] = now
	docs = append(docs, stored)

	slices.SortStableFunc(docs, func(a, b Document) int {
		return eventTime(a).Compare(eventTime(b))
	})
	if len(docs) > s.auditLimit {
		docs = docs[len(docs)-s.auditLimit:]
	}
	if err := s.writeCollection(name, docs); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// eventTime extracts an entry's event time from its timestamp field.
// Entries with a missing or unparseable timestamp sort as oldest, so they
// are the first to be trimmed.
func eventTime(d Document) time.Time {
	switch v := d["timestamp"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	case float64:
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}
