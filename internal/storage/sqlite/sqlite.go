package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/tendril/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	depth INTEGER NOT NULL,
	url TEXT NOT NULL,
	links TEXT NOT NULL,
	images TEXT NOT NULL,
	metadata TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS extractions_url_idx ON extractions (url);
CREATE INDEX IF NOT EXISTS extractions_run_idx ON extractions (run_id, depth);
`

// New opens the SQLite database at dsn and ensures the schema exists.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, e *storage.Extraction) error {
	links, images, meta, err := encodeLists(e)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO extractions (id, run_id, depth, url, links, images, metadata, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.Depth, e.URL, links, images, meta, e.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert extraction %s: %w", e.URL, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Extraction, error) {
	query := `SELECT id, run_id, depth, url, links, images, metadata, fetched_at FROM extractions WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Depth != nil {
		query += ` AND depth = ?`
		args = append(args, *filter.Depth)
	}

	query += ` ORDER BY fetched_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	defer rows.Close()

	var results []*storage.Extraction
	for rows.Next() {
		var (
			e                    storage.Extraction
			links, images, metas string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Depth, &e.URL, &links, &images, &metas, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		if err := decodeLists(&e, links, images, metas); err != nil {
			return nil, err
		}
		results = append(results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func encodeLists(e *storage.Extraction) (links, images, meta string, err error) {
	l, err := json.Marshal(e.Links)
	if err != nil {
		return "", "", "", fmt.Errorf("encode links: %w", err)
	}
	i, err := json.Marshal(e.Images)
	if err != nil {
		return "", "", "", fmt.Errorf("encode images: %w", err)
	}
	m, err := json.Marshal(e.Metadata)
	if err != nil {
		return "", "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(l), string(i), string(m), nil
}

func decodeLists(e *storage.Extraction, links, images, meta string) error {
	if err := json.Unmarshal([]byte(links), &e.Links); err != nil {
		return fmt.Errorf("decode links of %s: %w", e.URL, err)
	}
	if err := json.Unmarshal([]byte(images), &e.Images); err != nil {
		return fmt.Errorf("decode images of %s: %w", e.URL, err)
	}
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		return fmt.Errorf("decode metadata of %s: %w", e.URL, err)
	}
	return nil
}
