package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jihyekim/newsharvest/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mode           TEXT NOT NULL,
	sources        TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP NOT NULL,
	total_articles INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS articles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        INTEGER NOT NULL REFERENCES runs(run_id),
	source_key    TEXT NOT NULL,
	title         TEXT NOT NULL,
	link          TEXT NOT NULL UNIQUE,
	original_link TEXT,
	summary       TEXT,
	body_text     TEXT,
	byline        TEXT,
	category      TEXT,
	keyword       TEXT,
	published_at  TIMESTAMP,
	collected_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_run ON articles(run_id);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source_key);
`

// SQLiteGateway stores runs and articles in a local SQLite database.
type SQLiteGateway struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteGateway opens (creating if needed) the database at path.
func NewSQLiteGateway(path string, logger *slog.Logger) (*SQLiteGateway, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteGateway{db: db, logger: logger.With("component", "sqlite_storage")}, nil
}

func (g *SQLiteGateway) SaveRun(ctx context.Context, meta RunMeta) (int64, error) {
	res, err := g.db.ExecContext(ctx,
		`INSERT INTO runs (mode, sources, started_at, finished_at, total_articles) VALUES (?, ?, ?, ?, ?)`,
		meta.Mode, strings.Join(meta.Sources, ","), meta.StartedAt, meta.FinishedAt, meta.TotalArticles)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	g.logger.Debug("run recorded", "run_id", runID, "mode", meta.Mode)
	return runID, nil
}

func (g *SQLiteGateway) SaveArticles(ctx context.Context, runID int64, articles []types.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO articles
			(run_id, source_key, title, link, original_link, summary, body_text,
			 byline, category, keyword, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range articles {
		var published any
		if a.PublishedAt != nil {
			published = *a.PublishedAt
		}
		res, err := stmt.ExecContext(ctx,
			runID, a.SourceKey, a.Title, a.Link, a.OriginalLink, a.Summary,
			a.BodyText, a.Byline, a.Category, a.Keyword, published, a.CollectedAt)
		if err != nil {
			return inserted, fmt.Errorf("insert article %s: %w", a.Link, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	g.logger.Info("articles stored",
		"run_id", runID, "inserted", inserted, "duplicates", len(articles)-inserted)
	return inserted, nil
}

// CountArticles returns the number of stored articles, optionally scoped to
// one source.
func (g *SQLiteGateway) CountArticles(ctx context.Context, sourceKey string) (int, error) {
	var (
		count int
		err   error
	)
	if sourceKey == "" {
		err = g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	} else {
		err = g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE source_key = ?`, sourceKey).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}
