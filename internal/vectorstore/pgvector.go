package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgVectorStore implements VectorStore on Postgres with the pgvector
// extension. One table corresponds to one index location.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	table      string
	vectorSize int
}

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewPgVectorStore connects to Postgres and ensures the entries table
// for this index exists. The table name must be a plain lowercase
// identifier since it is interpolated into DDL.
func NewPgVectorStore(ctx context.Context, connStr, table string, vectorSize int) (*PgVectorStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PgVectorStore{pool: pool, table: table, vectorSize: vectorSize}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            ordinal INTEGER NOT NULL,
            locator TEXT NOT NULL,
            sub_index INTEGER NOT NULL,
            text TEXT NOT NULL,
            embedding vector(%d) NOT NULL
        )
    `, s.table, s.vectorSize))
	if err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_ordinal_idx ON %s (ordinal)", s.table, s.table))
	if err != nil {
		return fmt.Errorf("failed to create ordinal index: %w", err)
	}

	return nil
}

// Replace atomically replaces all entries within one transaction.
func (s *PgVectorStore) Replace(ctx context.Context, entries []Entry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (id, ordinal, locator, sub_index, text, embedding) VALUES ($1, $2, $3, $4, $5, $6::vector)",
		s.table)
	for _, entry := range entries {
		if _, err := tx.Exec(ctx, insert,
			entry.ID, entry.Ordinal, entry.Locator, entry.SubIndex, entry.Text,
			vectorLiteral(entry.Vector),
		); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entries: %w", err)
	}
	return nil
}

// Search orders by cosine distance with ordinal as the secondary key,
// so ranking matches the other backends.
func (s *PgVectorStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT id, ordinal, locator, sub_index, text,
               1 - (embedding <=> $1::vector) AS score
        FROM %s
        ORDER BY embedding <=> $1::vector, ordinal
        LIMIT $2
    `, s.table), vectorLiteral(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var score float64
		if err := rows.Scan(&r.EntryID, &r.Ordinal, &r.Locator, &r.SubIndex, &r.Text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// List returns all entries in document order without vectors.
func (s *PgVectorStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT id, ordinal, locator, sub_index, text FROM %s ORDER BY ordinal", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Ordinal, &e.Locator, &e.SubIndex, &e.Text); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Count returns the number of persisted entries.
func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

// vectorLiteral renders a vector in pgvector's text input format.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
