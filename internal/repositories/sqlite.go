package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SQLiteStore implements [DocumentStore] on the documents table created by the shared migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new [SQLiteStore] with the given, already migrated, database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves a document body and decodes it into dst.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string, dst any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to query document: %w", err)
	}

	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Create inserts a new document; an existing (collection, id) is left untouched.
func (s *SQLiteStore) Create(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, collection, id, string(body), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
	}
	return nil
}

// Set upserts the full document body.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, collection, id, string(body), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Update replaces the named top-level fields of an existing document in a single statement.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateFields(fields); err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+3)
	for _, name := range names {
		encoded, err := json.Marshal(fields[name])
		if err != nil {
			return fmt.Errorf("failed to encode field %s: %w", name, err)
		}
		paths = append(paths, fmt.Sprintf("'$.%s', json(?)", name))
		args = append(args, string(encoded))
	}
	args = append(args, time.Now().UTC(), collection, id)

	query := fmt.Sprintf(`
		UPDATE documents SET body = json_set(body, %s), updated_at = ?
		WHERE collection = ? AND id = ?
	`, strings.Join(paths, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
