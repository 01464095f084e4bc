// Package storage persists collected articles. A run is recorded first and
// its id stamped onto every article row; the canonical link is the unique key
// and duplicate articles are silently skipped, so re-running a collection is
// idempotent.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/types"
)

// RunMeta describes one collection run.
type RunMeta struct {
	Mode          string
	Sources       []string
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalArticles int
}

// Gateway is the persistence backend. SaveRun must be called before
// SaveArticles; articles whose canonical link already exists are skipped and
// the returned count covers newly inserted rows only.
type Gateway interface {
	SaveRun(ctx context.Context, meta RunMeta) (int64, error)
	SaveArticles(ctx context.Context, runID int64, articles []types.Article) (int, error)
	Close() error
}

// Open returns the configured gateway backend.
func Open(cfg config.StorageConfig, logger *slog.Logger) (Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", "none":
		return NopGateway{}, nil
	case "sqlite":
		return NewSQLiteGateway(cfg.SQLitePath, logger)
	case "mongodb":
		return NewMongoGateway(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// NopGateway discards everything; used when persistence is disabled.
type NopGateway struct{}

func (NopGateway) SaveRun(context.Context, RunMeta) (int64, error) { return 0, nil }

func (NopGateway) SaveArticles(_ context.Context, _ int64, articles []types.Article) (int, error) {
	return len(articles), nil
}

func (NopGateway) Close() error { return nil }
