package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/tendril/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	depth INTEGER NOT NULL,
	url TEXT NOT NULL,
	links JSONB NOT NULL,
	images JSONB NOT NULL,
	metadata JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS extractions_url_idx ON extractions (url);
CREATE INDEX IF NOT EXISTS extractions_run_idx ON extractions (run_id, depth);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, e *storage.Extraction) error {
	links, err := json.Marshal(e.Links)
	if err != nil {
		return fmt.Errorf("encode links: %w", err)
	}
	images, err := json.Marshal(e.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `
	INSERT INTO extractions (id, run_id, depth, url, links, images, metadata, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = b.pool.Exec(ctx, query,
		e.ID, e.RunID, e.Depth, e.URL, links, images, meta, e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction %s: %w", e.URL, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Extraction, error) {
	query := `SELECT id, run_id, depth, url, links, images, metadata, fetched_at FROM extractions WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND url = $%d`, paramCount)
		args = append(args, filter.URL)
		paramCount++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Depth != nil {
		query += fmt.Sprintf(` AND depth = $%d`, paramCount)
		args = append(args, *filter.Depth)
		paramCount++
	}

	query += ` ORDER BY fetched_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	defer rows.Close()

	var results []*storage.Extraction
	for rows.Next() {
		var (
			e                    storage.Extraction
			links, images, metas []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Depth, &e.URL, &links, &images, &metas, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		if err := json.Unmarshal(links, &e.Links); err != nil {
			return nil, fmt.Errorf("decode links of %s: %w", e.URL, err)
		}
		if err := json.Unmarshal(images, &e.Images); err != nil {
			return nil, fmt.Errorf("decode images of %s: %w", e.URL, err)
		}
		if err := json.Unmarshal(metas, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", e.URL, err)
		}
		results = append(results, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
