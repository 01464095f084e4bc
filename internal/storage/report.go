package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jihyekim/newsharvest/internal/types"
)

// WriteReport writes a run's results to a JSON file, one object per source in
// run order. Korean text is written as-is rather than escaped.
func WriteReport(path string, report *types.RunReport, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	results := report.Results
	if results == nil {
		results = []*types.CollectionResult{}
	}
	for _, res := range results {
		if res.Articles == nil {
			res.Articles = []types.Article{}
		}
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	logger.Info("report written", "path", path, "sources", len(results), "articles", report.TotalArticles)
	return nil
}
