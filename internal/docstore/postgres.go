package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/printops/order-sync-api/internal/config"
	"github.com/printops/order-sync-api/pkg/logger"
)

// PostgresStore implements Store on a single JSONB-backed table. The merge
// upsert maps directly onto the jsonb || operator, which is shallow per-field
// merge, exactly the semantics SetMerged promises.
type PostgresStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewPostgresStore connects to the database and returns the store
func NewPostgresStore(cfg *config.Config, logger logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// NewPostgresStoreWithDB wraps an existing connection. Used by tests.
func NewPostgresStoreWithDB(db *sqlx.DB, logger logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunMigrations creates the documents table
func (s *PostgresStore) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection VARCHAR(64) NOT NULL,
		key        VARCHAR(128) NOT NULL,
		doc        JSONB NOT NULL,
		PRIMARY KEY (collection, key)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_doc ON documents USING GIN (doc);
	`

	_, err := s.db.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info("Database migrations completed successfully")
	return nil
}

// Get retrieves a single document
func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	query := `SELECT doc FROM documents WHERE collection = $1 AND key = $2`

	var raw []byte
	err := s.db.GetContext(ctx, &raw, query, collection, key)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error("Failed to get document", "error", err, "collection", collection, "key", key)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return decodeDocument(raw)
}

// Set writes a document, replacing any existing one
func (s *PostgresStore) Set(ctx context.Context, collection, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	query := `
		INSERT INTO documents (collection, key, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc
	`

	if _, err := s.db.ExecContext(ctx, query, collection, key, raw); err != nil {
		s.logger.Error("Failed to set document", "error", err, "collection", collection, "key", key)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// SetMerged merges the given fields into the document, creating it if absent
func (s *PostgresStore) SetMerged(ctx context.Context, collection, key string, partial Document) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	query := `
		INSERT INTO documents (collection, key, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET doc = documents.doc || EXCLUDED.doc
	`

	if _, err := s.db.ExecContext(ctx, query, collection, key, raw); err != nil {
		s.logger.Error("Failed to merge document", "error", err, "collection", collection, "key", key)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// Delete removes a document
func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND key = $2`

	result, err := s.db.ExecContext(ctx, query, collection, key)

	if err != nil {
		s.logger.Error("Failed to delete document", "error", err, "collection", collection, "key", key)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteField removes a single field from a document
func (s *PostgresStore) DeleteField(ctx context.Context, collection, key, field string) error {
	query := `UPDATE documents SET doc = doc - $3 WHERE collection = $1 AND key = $2`

	result, err := s.db.ExecContext(ctx, query, collection, key, field)

	if err != nil {
		s.logger.Error("Failed to delete field", "error", err, "collection", collection, "key", key, "field", field)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Query returns the documents in a collection, optionally filtered by field
// equality with a result cap
func (s *PostgresStore) Query(ctx context.Context, collection string, filter *Filter) ([]Document, error) {
	query := `SELECT doc FROM documents WHERE collection = $1`
	args := []interface{}{collection}

	if filter != nil && filter.Field != "" {
		match, err := json.Marshal(Document{filter.Field: filter.Value})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		query += ` AND doc @> $2`
		args = append(args, match)
	}

	query += ` ORDER BY key`

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.Error("Failed to query documents", "error", err, "collection", collection)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, raw := range rows {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return doc, nil
}
