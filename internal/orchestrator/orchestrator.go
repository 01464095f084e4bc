// Package orchestrator runs one collection pass: resolve the requested
// sources, run the mode's collector over each in order, and aggregate the
// results into a run report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jihyekim/newsharvest/internal/collector"
	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/registry"
	"github.com/jihyekim/newsharvest/internal/types"
)

// Orchestrator wires the registry and collectors into full runs.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	deps     collector.Deps
	logger   *slog.Logger
}

func New(cfg *config.Config, reg *registry.Registry, deps collector.Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		deps:     deps,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Run executes one collection pass. Source resolution failures are fatal and
// returned before any collection starts; structural per-source failures are
// recorded in the report and never abort the run. The error return is non-nil
// only for fatal conditions.
func (o *Orchestrator) Run(ctx context.Context, req *types.CollectionRequest) (*types.RunReport, error) {
	kind := req.Mode.Kind()
	if !kind.Valid() {
		return nil, fmt.Errorf("unsupported mode %q", req.Mode)
	}

	sources, err := o.registry.Select(req.SelectedKeys, kind)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, &types.ResolutionError{Token: registry.AllToken, Err: fmt.Errorf("no enabled sources of kind %s", kind)}
	}

	coll, err := collector.For(kind, o.deps)
	if err != nil {
		return nil, err
	}

	report := &types.RunReport{Mode: req.Mode, StartedAt: time.Now()}
	o.logger.Info("run started", "mode", req.Mode, "sources", len(sources))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		o.logger.Info("collecting source", "source", src.Key, "kind", src.Kind)
		result := coll.Collect(ctx, src, req)
		report.Results = append(report.Results, result)

		if result.Failed() {
			if types.IsFatal(result.Structural) {
				report.Finish()
				return report, result.Structural
			}
			o.logger.Error("source failed", "source", src.Key, "error", result.Structural)
			continue
		}
		for _, itemErr := range result.Errors {
			o.logger.Warn("item skipped or degraded", "source", src.Key, "context", itemErr.Context, "error", itemErr.Err)
		}
	}

	report.Finish()
	o.logger.Info("run finished",
		"mode", req.Mode, "articles", report.TotalArticles,
		"sources", len(report.Results), "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}
