package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/api"
)

const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

type Options struct {
	Type          string
	URL           string
	MigrationsDir string
}

// Open builds the configured store. SQLite and Postgres stores are migrated
// before they are returned.
func Open(ctx context.Context, opts Options, log *zap.Logger) (api.Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch opts.Type {
	case TypeMemory, "":
		log.Warn("using in-memory store; data is lost on restart")
		return api.NewMemoryStore(), nil
	case TypeSQLite:
		if opts.URL != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.URL), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		s, err := OpenSQLite(opts.URL, opts.MigrationsDir)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		log.Info("sqlite store ready", zap.String("path", opts.URL))
		return s, nil
	case TypePostgres:
		s, err := OpenPostgres(opts.URL, log)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database type %q", opts.Type)
	}
}
