package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/tenants"
)

// ErrCorrupt is returned when neither the credential file nor its backup
// can be parsed. Callers must treat this as an outage, not an empty store.
var ErrCorrupt = errors.New("credential store corrupt")

const backupSuffix = ".bak"

// FileStore implements tenants.Store on top of a single JSON file. All
// mutation goes through an exclusive lock, readers share a read lock, and
// every rewrite first copies the current file to a .bak sibling and then
// replaces the primary atomically via temp file and rename.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	logger  *observability.Logger
	metrics *observability.Metrics

	// snapshot caches the last parsed document. Invalidated by Write and
	// Update, and externally by the fsnotify watcher.
	snapshot tenants.Document
}

// FileOption configures a FileStore
type FileOption func(*FileStore)

// WithFileLogger sets the structured logger
func WithFileLogger(logger *observability.Logger) FileOption {
	return func(s *FileStore) { s.logger = logger }
}

// WithFileMetrics enables store operation metrics
func WithFileMetrics(m *observability.Metrics) FileOption {
	return func(s *FileStore) { s.metrics = m }
}

// NewFileStore creates a file-backed credential store at path. The parent
// directory is created if missing; the file itself is created lazily on
// first write, and a missing file reads as an empty document.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	s := &FileStore{
		path:   path,
		logger: observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the location of the primary credential file.
func (s *FileStore) Path() string { return s.path }

// Read returns a deep copy of the current document.
func (s *FileStore) Read(ctx context.Context) (tenants.Document, error) {
	s.mu.RLock()
	if s.snapshot != nil {
		doc := s.snapshot.Clone()
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	s.snapshot = doc
	return doc.Clone(), nil
}

// Write replaces the whole document.
func (s *FileStore) Write(ctx context.Context, doc tenants.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(doc); err != nil {
		return err
	}
	s.snapshot = doc.Clone()
	return nil
}

// Update runs fn against a working copy of the document under the exclusive
// lock and persists the result only when fn succeeds. An error from fn
// aborts the update and leaves the file untouched.
func (s *FileStore) Update(ctx context.Context, fn func(tenants.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshot
	if current == nil {
		var err error
		current, err = s.loadLocked()
		if err != nil {
			return err
		}
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := s.persistLocked(working); err != nil {
		return err
	}
	s.snapshot = working
	return nil
}

// Ping reports whether the backing file is usable.
func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("credential directory unavailable: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot != nil {
		return nil
	}
	_, err := os.Stat(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credential file unavailable: %w", err)
	}
	return nil
}

// invalidate drops the cached snapshot so the next Read hits disk. Called
// by the fsnotify watcher when the file changes underneath us.
func (s *FileStore) invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// loadLocked reads and parses the primary file, falling back to the backup
// when the primary is corrupt. Caller holds the write lock.
func (s *FileStore) loadLocked() (tenants.Document, error) {
	start := time.Now()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return tenants.Document{}, nil
	}
	if err != nil {
		s.observe("read", start, err)
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	doc, parseErr := parseDocument(data)
	if parseErr == nil {
		s.observe("read", start, nil)
		return doc, nil
	}

	s.logger.WithError(parseErr).
		WithField("path", s.path).
		Warn("credential file unparseable, attempting backup recovery")

	backup, err := os.ReadFile(s.path + backupSuffix)
	if err != nil {
		s.observe("read", start, ErrCorrupt)
		return nil, fmt.Errorf("%w: primary unparseable (%v) and backup unreadable (%v)", ErrCorrupt, parseErr, err)
	}
	doc, err = parseDocument(backup)
	if err != nil {
		s.observe("read", start, ErrCorrupt)
		return nil, fmt.Errorf("%w: primary unparseable (%v) and backup unparseable (%v)", ErrCorrupt, parseErr, err)
	}

	if s.metrics != nil {
		s.metrics.StoreBackupRecoveries.Inc()
	}
	s.logger.WithField("path", s.path).Warn("recovered credential document from backup")
	s.observe("read", start, nil)
	return doc, nil
}

// persistLocked backs up the current file and atomically replaces it with
// the marshaled document. Caller holds the write lock.
func (s *FileStore) persistLocked(doc tenants.Document) error {
	start := time.Now()
	if err := s.backupLocked(); err != nil {
		s.observe("write", start, err)
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to marshal credential document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.observe("write", start, err)
		return fmt.Errorf("failed to write temp credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.observe("write", start, err)
		return fmt.Errorf("failed to sync temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to close temp credential file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to set credential file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	s.observe("write", start, nil)
	return nil
}

// backupLocked copies the current primary to the .bak sibling. A missing
// primary means there is nothing to protect yet.
func (s *FileStore) backupLocked() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credential file for backup: %w", err)
	}
	if err := os.WriteFile(s.path+backupSuffix, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential backup: %w", err)
	}
	return nil
}

func (s *FileStore) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStoreOperation(op, "file", err, time.Since(start))
}

func parseDocument(data []byte) (tenants.Document, error) {
	if len(data) == 0 {
		return tenants.Document{}, nil
	}
	var doc tenants.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = tenants.Document{}
	}
	for id, t := range doc {
		if t == nil {
			return nil, fmt.Errorf("tenant %q is null", id)
		}
		t.ID = id
		if t.Users == nil {
			t.Users = map[string]tenants.User{}
		}
	}
	return doc, nil
}
