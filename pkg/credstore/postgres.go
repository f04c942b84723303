package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/tenants"
)

const credentialsSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	doc JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
INSERT INTO credentials (id, doc) VALUES (1, '{}'::jsonb)
ON CONFLICT (id) DO NOTHING;
`

// PostgresConfig holds connection settings for the postgres-backed store.
type PostgresConfig struct {
	URL      string
	MaxConns int
	Timeout  time.Duration
}

// PostgresStore implements tenants.Store on a single jsonb row. Update
// takes a row lock for the read-modify-write cycle, which gives the same
// lost-update protection as the file store's mutex but works across
// processes sharing the database.
type PostgresStore struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// PostgresOption configures a PostgresStore
type PostgresOption func(*PostgresStore)

// WithPostgresLogger sets the structured logger
func WithPostgresLogger(logger *observability.Logger) PostgresOption {
	return func(s *PostgresStore) { s.logger = logger }
}

// WithPostgresMetrics enables store operation metrics
func WithPostgresMetrics(m *observability.Metrics) PostgresOption {
	return func(s *PostgresStore) { s.metrics = m }
}

// NewPostgresStore connects to postgres, verifies the connection and
// ensures the credentials table and its singleton row exist.
func NewPostgresStore(cfg PostgresConfig, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, credentialsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credentials table: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing connection without running
// migrations. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:     db,
		logger: observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the current document.
func (s *PostgresStore) Read(ctx context.Context) (tenants.Document, error) {
	start := time.Now()
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM credentials WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		s.observe("read", start, nil)
		return tenants.Document{}, nil
	}
	if err != nil {
		s.observe("read", start, err)
		return nil, fmt.Errorf("failed to read credential document: %w", err)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		s.observe("read", start, ErrCorrupt)
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s.observe("read", start, nil)
	return doc, nil
}

// Write replaces the whole document.
func (s *PostgresStore) Write(ctx context.Context, doc tenants.Document) error {
	start := time.Now()
	data, err := json.Marshal(doc)
	if err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to marshal credential document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, doc, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		data)
	if err != nil {
		s.observe("write", start, err)
		return fmt.Errorf("failed to write credential document: %w", err)
	}
	s.observe("write", start, nil)
	return nil
}

// Update runs fn against the document inside a transaction holding the row
// lock, so concurrent updaters from any process serialize here.
func (s *PostgresStore) Update(ctx context.Context, fn func(tenants.Document) error) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.observe("update", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM credentials WHERE id = 1 FOR UPDATE`).Scan(&raw)
	var doc tenants.Document
	switch {
	case err == sql.ErrNoRows:
		doc = tenants.Document{}
	case err != nil:
		s.observe("update", start, err)
		return fmt.Errorf("failed to lock credential document: %w", err)
	default:
		doc, err = parseDocument(raw)
		if err != nil {
			s.observe("update", start, ErrCorrupt)
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	if err := fn(doc); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		s.observe("update", start, err)
		return fmt.Errorf("failed to marshal credential document: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (id, doc, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		data)
	if err != nil {
		s.observe("update", start, err)
		return fmt.Errorf("failed to write credential document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.observe("update", start, err)
		return fmt.Errorf("failed to commit credential update: %w", err)
	}
	s.observe("update", start, nil)
	return nil
}

// Ping reports database health.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStoreOperation(op, "postgres", err, time.Since(start))
}
