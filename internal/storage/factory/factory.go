// Package factory builds the storage backends named in configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FranksOps/tendril/internal/storage"
	"github.com/FranksOps/tendril/internal/storage/csvbackend"
	"github.com/FranksOps/tendril/internal/storage/jsonbackend"
	"github.com/FranksOps/tendril/internal/storage/postgres"
	"github.com/FranksOps/tendril/internal/storage/redisbackend"
	"github.com/FranksOps/tendril/internal/storage/sqlite"
)

// Store names accepted in Config.Stores.
const (
	StoreJSON     = "json"
	StoreCSV      = "csv"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config selects and parameterizes backends. Paths left empty are placed in
// OutDir.
type Config struct {
	Stores []string

	OutDir string
	Layout string
	// MaxDepth, when positive, opens the stores for a new run bounded by it;
	// the JSON store then clears output left by earlier runs.
	MaxDepth int

	CSVPath     string
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
	RedisPrefix string
}

// Open builds every configured backend. With no stores configured it opens
// the JSON backend; with several it returns a storage.Multi whose first
// member serves queries.
func Open(ctx context.Context, cfg Config) (storage.Backend, error) {
	stores := cfg.Stores
	if len(stores) == 0 {
		stores = []string{StoreJSON}
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}

	var opened []storage.Backend
	closeAll := func() {
		for _, b := range opened {
			_ = b.Close()
		}
	}

	seen := make(map[string]bool)
	for _, name := range stores {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		seen[name] = true

		b, err := openOne(ctx, name, cfg)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open %s store: %w", name, err)
		}
		opened = append(opened, b)
	}

	if len(opened) == 1 {
		return opened[0], nil
	}
	multi, err := storage.NewMulti(opened...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return multi, nil
}

func openOne(ctx context.Context, name string, cfg Config) (storage.Backend, error) {
	switch name {
	case StoreJSON:
		layout, err := jsonbackend.ParseLayout(cfg.Layout)
		if err != nil {
			return nil, err
		}
		return jsonbackend.New(cfg.OutDir, layout, cfg.MaxDepth)
	case StoreCSV:
		path := cfg.CSVPath
		if path == "" {
			path = filepath.Join(cfg.OutDir, "scraped_data.csv")
		}
		return csvbackend.New(path)
	case StoreSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.OutDir, "tendril.db")
		}
		return sqlite.New(path)
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is not set")
		}
		return postgres.New(ctx, cfg.PostgresDSN)
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("redis address is not set")
		}
		return redisbackend.New(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store %q", name)
	}
}
