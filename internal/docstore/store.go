package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/maruel/ksid"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultAuditCollection = "auditlogs"
	DefaultAuditLimit      = 1000
	defaultReadRetries     = 4
	defaultReadRetryDelay  = 10 * time.Millisecond
)

// Config holds store construction options.
type Config struct {
	Collections     []string      // Declared collection names; fixed for the store's lifetime
	AuditCollection string        // Audit log collection (default "auditlogs"), declared implicitly
	AuditLimit      int           // Max retained audit entries (default 1000)
	ReadRetries     int           // Parse-failure retries per read (default 4)
	ReadRetryDelay  time.Duration // Backoff base; attempt N sleeps N*delay (default 10ms)
}

// Store is a file-backed document store. The collection registry and the
// per-collection mutation locks are built once at construction; there is no
// dynamic collection creation.
type Store struct {
	dataDir         string
	files           map[string]string
	locks           map[string]*sync.Mutex
	auditCollection string
	auditLimit      int
	readRetries     int
	readRetryDelay  time.Duration
}

// New creates a store over dataDir. It does not touch the filesystem; call
// Connect before issuing operations.
func New(dataDir string, config Config) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if config.AuditCollection == "" {
		config.AuditCollection = DefaultAuditCollection
	}
	if config.AuditLimit == 0 {
		config.AuditLimit = DefaultAuditLimit
	}
	if config.AuditLimit < 0 {
		return nil, fmt.Errorf("audit limit must be positive, got %d", config.AuditLimit)
	}
	if config.ReadRetries == 0 {
		config.ReadRetries = defaultReadRetries
	}
	if config.ReadRetryDelay == 0 {
		config.ReadRetryDelay = defaultReadRetryDelay
	}

	names := slices.Clone(config.Collections)
	if !slices.Contains(names, config.AuditCollection) {
		names = append(names, config.AuditCollection)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one collection is required")
	}

	s := &Store{
		dataDir:         dataDir,
		files:           make(map[string]string, len(names)),
		locks:           make(map[string]*sync.Mutex, len(names)),
		auditCollection: config.AuditCollection,
		auditLimit:      config.AuditLimit,
		readRetries:     config.ReadRetries,
		readRetryDelay:  config.ReadRetryDelay,
	}
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("collection name must not be empty")
		}
		s.files[name] = filepath.Join(dataDir, name+".json")
		s.locks[name] = &sync.Mutex{}
	}
	return s, nil
}

// DataDir returns the store's data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Collections returns the declared collection names in sorted order.
func (s *Store) Collections() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// path resolves a collection name to its backing file.
func (s *Store) path(name string) (string, error) {
	path, ok := s.files[name]
	if !ok {
		return "", fmt.Errorf("collection %q: %w", name, ErrUnknownCollection)
	}
	return path, nil
}

// Connect ensures the data directory and every declared collection file
// exist, creating missing files as empty collections. It is idempotent and
// safe to call on every startup.
func (s *Store) Connect() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", s.dataDir, err)
	}
	for _, name := range s.Collections() {
		path := s.files[name]
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return &StorageError{Op: "read", Collection: name, Path: path, Err: err}
		}
		if err := s.writeCollection(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// Find returns clones of all documents matching filter, in collection
// order. It reads a fresh snapshot without taking the collection lock: a
// read concurrent with an in-flight mutation observes either the pre- or
// post-mutation state, never a torn one.
func (s *Store) Find(collection string, filter Filter) ([]Document, error) {
	docs, err := s.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	out := []Document{}
	for _, doc := range docs {
		if doc.Matches(filter) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// FindOne returns a clone of the first document matching filter, or
// (nil, nil) when nothing matches.
func (s *Store) FindOne(collection string, filter Filter) (Document, error) {
	docs, err := s.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.Matches(filter) {
			return doc.Clone(), nil
		}
	}
	return nil, nil
}

// Count returns the number of documents currently persisted in collection.
func (s *Store) Count(collection string) (int, error) {
	docs, err := s.loadCollection(collection)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Insert appends doc to the collection and returns the stored document
// including generated fields. A primary identifier is assigned when absent;
// duplicate identifiers are not checked, callers own their uniqueness.
func (s *Store) Insert(collection string, doc Document) (Document, error) {
	mu, err := s.lock(collection)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()

	docs, err := s.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	now := timestamp()
	if stored.ID() == "" {
		stored["_id"] = newDocumentID()
	}
	if _, ok := stored["createdAt"]; !ok {
		stored["createdAt"] = now
	}
	stored["updatedAt"] = now
	docs = append(docs, stored)
	if err := s.writeCollection(collection, docs); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// Update shallow-merges patch over the first document matching filter,
// bumps its updatedAt, persists, and returns the updated document. When
// nothing matches it returns (nil, nil) and performs no write.
func (s *Store) Update(collection string, filter Filter, patch Document) (Document, error) {
	mu, err := s.lock(collection)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()

	docs, err := s.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if !doc.Matches(filter) {
			continue
		}
		for k, v := range patch {
			doc[k] = cloneValue(v)
		}
		doc["updatedAt"] = timestamp()
		docs[i] = doc
		if err := s.writeCollection(collection, docs); err != nil {
			return nil, err
		}
		return doc.Clone(), nil
	}
	return nil, nil
}

// Delete removes the first document matching filter, persists the remaining
// sequence, and returns the removed document. When nothing matches it
// returns (nil, nil) and performs no write.
func (s *Store) Delete(collection string, filter Filter) (Document, error) {
	mu, err := s.lock(collection)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()

	docs, err := s.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if !doc.Matches(filter) {
			continue
		}
		docs = slices.Delete(docs, i, i+1)
		if err := s.writeCollection(collection, docs); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, nil
}

// Health reports the result of a TestConnection liveness probe.
type Health struct {
	Healthy    bool   `json:"healthy"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Path       string `json:"path"`
	Error      string `json:"error,omitempty"`
}

// TestConnection probes storage by reading one collection and reporting its
// document count and backing path.
func (s *Store) TestConnection() Health {
	name := s.Collections()[0]
	h := Health{Collection: name, Path: s.files[name]}
	docs, err := s.loadCollection(name)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Healthy = true
	h.Documents = len(docs)
	return h
}

// lock returns the serialization mutex for a collection. One mutex per
// declared collection, built at construction: mutations on the same
// collection execute one at a time while other collections proceed
// independently.
func (s *Store) lock(name string) (*sync.Mutex, error) {
	mu, ok := s.locks[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrUnknownCollection)
	}
	return mu, nil
}

// newDocumentID generates a time-sortable identifier. Collision-resistant
// enough for a single-process store; callers needing stronger guarantees
// supply their own _id.
func newDocumentID() string {
	return ksid.NewID().String()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
