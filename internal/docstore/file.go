// Durable file I/O for collections.
//
// A collection's full contents are one JSON array on disk. Reads parse the
// whole file; a missing or blank file is an empty collection. Writes go to a
// freshly named temp file in the same directory and are renamed over the
// target, so a rename within the same filesystem makes the replacement
// atomic at the OS level.

package docstore

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// readCollection reads and parses a collection file once, without retries.
func (s *Store) readCollection(name string) ([]Document, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A fresh collection is legitimately empty.
			return []Document{}, nil
		}
		return nil, &StorageError{Op: "read", Collection: name, Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Document{}, nil
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("collection %q (%s): %w: %v", name, path, ErrCorrupt, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// loadCollection reads a collection, retrying parse failures with linearly
// increasing backoff. Atomic renames should make torn reads impossible, but
// this guards against external interference or partial flushes on exotic
// filesystems. I/O failures are not retried.
func (s *Store) loadCollection(name string) ([]Document, error) {
	docs, err := s.readCollection(name)
	for attempt := 1; err != nil && errors.Is(err, ErrCorrupt) && attempt <= s.readRetries; attempt++ {
		time.Sleep(time.Duration(attempt) * s.readRetryDelay)
		docs, err = s.readCollection(name)
	}
	return docs, err
}

// writeCollection atomically replaces a collection file with the given
// documents. On failure the temp file is removed; if that cleanup itself
// fails it is logged without masking the original error.
func (s *Store) writeCollection(name string, docs []Document) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return &StorageError{Op: "write", Collection: name, Path: path, Err: err}
	}
	data = append(data, '\n')

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Collection: name, Path: path, Err: err}
	}
	tmpPath := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpPath, path)
	}
	if werr != nil {
		if rerr := os.Remove(tmpPath); rerr != nil && !os.IsNotExist(rerr) {
			slog.Warn("Failed to remove temp file after failed write", "path", tmpPath, "err", rerr)
		}
		return &StorageError{Op: "write", Collection: name, Path: path, Err: werr}
	}
	return nil
}
