package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/folio/internal/domain"
)

// PostgresStore keeps documents as JSONB rows in one table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content_type TEXT NOT NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(content_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_published ON documents(content_type) WHERE published`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, ct domain.ContentType, opts ListOptions) ([]*domain.Document, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, content_type, published, data, created_at, updated_at
		FROM documents
		WHERE content_type = $1 AND (published OR NOT $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, string(ct), opts.PublishedOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ct, err)
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s scan: %w", ct, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s rows: %w", ct, err)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, ct domain.ContentType, id string) (*domain.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, content_type, published, data, created_at, updated_at
		FROM documents
		WHERE content_type = $1 AND id = $2
	`, string(ct), id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", ct, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ct, err)
	}
	return doc, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *domain.Document) error {
	if err := prepare(doc, time.Now().UTC()); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, content_type, published, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			published = EXCLUDED.published,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, doc.ID, string(doc.Type), doc.Published, []byte(doc.Data), doc.CreatedAt, doc.UpdatedAt).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save %s: %w", doc.Type, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ct domain.ContentType, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE content_type = $1 AND id = $2`, string(ct), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ct, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", ct, id, ErrNotFound)
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		doc  domain.Document
		ct   string
		data []byte
	)
	if err := row.Scan(&doc.ID, &ct, &doc.Published, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Type = domain.ContentType(ct)
	doc.Data = json.RawMessage(data)
	return &doc, nil
}
