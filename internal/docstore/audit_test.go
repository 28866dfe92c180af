package docstore

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendAuditAssignsFields(t *testing.T) {
	s := newTestStore(t, Config{Collections: []string{"users"}})

	entry, err := s.AppendAudit(Document{"event": "login", "user": "A"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID() == "" {
		t.Error("AppendAudit did not assign _id")
	}
	if entry["timestamp"] == nil {
		t.Error("AppendAudit did not assign timestamp")
	}
	if entry["createdAt"] == nil || entry["updatedAt"] == nil {
		t.Error("AppendAudit did not assign createdAt/updatedAt")
	}

	// A caller-supplied timestamp is preserved.
	entry, err = s.AppendAudit(Document{"event": "x", "timestamp": "2024-06-01T00:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	if entry["timestamp"] != "2024-06-01T00:00:00Z" {
		t.Errorf("timestamp = %v, want preserved value", entry["timestamp"])
	}
}

func TestAuditTrimsToCap(t *testing.T) {
	s := newTestStore(t, Config{Collections: []string{"users"}})

	const total = 1005
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range total {
		ts := base.Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano)
		if _, err := s.AppendAudit(Document{"seq": i, "timestamp": ts}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := s.Find(DefaultAuditCollection, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != DefaultAuditLimit {
		t.Fatalf("Expected %d retained entries, got %d", DefaultAuditLimit, len(docs))
	}
	// The oldest 5 entries were evicted; the survivors are the newest 1000
	// in ascending timestamp order.
	if docs[0]["seq"] != float64(total-DefaultAuditLimit) {
		t.Errorf("Oldest retained seq = %v, want %d", docs[0]["seq"], total-DefaultAuditLimit)
	}
	if docs[len(docs)-1]["seq"] != float64(total-1) {
		t.Errorf("Newest retained seq = %v, want %d", docs[len(docs)-1]["seq"], total-1)
	}
}

func TestAuditSortsByEventTime(t *testing.T) {
	s := newTestStore(t, Config{Collections: []string{"users"}, AuditLimit: 3})

	// Entries arrive out of chronological order; the trim must evict the
	// oldest by event time, not by insertion time.
	times := []string{
		"2024-01-01T00:00:03Z",
		"2024-01-01T00:00:01Z",
		"2024-01-01T00:00:04Z",
		"2024-01-01T00:00:02Z",
	}
	for i, ts := range times {
		if _, err := s.AppendAudit(Document{"n": i, "timestamp": ts}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := s.Find(DefaultAuditCollection, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 retained entries, got %d", len(docs))
	}
	want := []string{
		"2024-01-01T00:00:02Z",
		"2024-01-01T00:00:03Z",
		"2024-01-01T00:00:04Z",
	}
	for i, ts := range want {
		if docs[i]["timestamp"] != ts {
			t.Errorf("docs[%d] timestamp = %v, want %s", i, docs[i]["timestamp"], ts)
		}
	}
}

func TestAuditNumericTimestamps(t *testing.T) {
	s := newTestStore(t, Config{Collections: []string{"users"}, AuditLimit: 2})

	// Unix-epoch numeric timestamps order correctly alongside the trim.
	for _, sec := range []int{300, 100, 200} {
		if _, err := s.AppendAudit(Document{"timestamp": float64(sec)}); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := s.Find(DefaultAuditCollection, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 retained entries, got %d", len(docs))
	}
	if docs[0]["timestamp"] != float64(200) || docs[1]["timestamp"] != float64(300) {
		t.Errorf("Retained entries out of order: %v", docs)
	}
}

func TestAuditCustomCollectionName(t *testing.T) {
	s := newTestStore(t, Config{Collections: []string{"users"}, AuditCollection: "events", AuditLimit: 10})
	for i := range 3 {
		if _, err := s.AppendAudit(Document{"event": fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Count("events")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Expected 3 entries in custom audit collection, got %d", n)
	}
}
