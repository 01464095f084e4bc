package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihyekim/newsharvest/internal/collector"
	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/fetcher"
	"github.com/jihyekim/newsharvest/internal/normalize"
	"github.com/jihyekim/newsharvest/internal/orchestrator"
	"github.com/jihyekim/newsharvest/internal/registry"
	"github.com/jihyekim/newsharvest/internal/storage"
	"github.com/jihyekim/newsharvest/internal/types"
)

var (
	cfgFile string
	verbose bool

	modeFlag   string
	sources    []string
	startPage  int
	endPage    int
	limit      int
	outputPath string
	noContent  bool
	headless   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsharvest",
		Short: "newsharvest — multi-source Korean news and notice collector",
		Long: `newsharvest collects articles and official notices from configured sources.

Modes:
  scrape   — paginated HTML news listings
  rss      — syndication feeds
  hwpx     — government boards with attached documents behind a preview viewer
  keyword  — news search API queries per configured keyword category

Collected articles are normalized, deduplicated by canonical link, and can be
written to a JSON report and/or a database.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a collection pass",
		Long:  "Collect from the selected sources of one mode. Without --source every enabled source of the mode runs.",
		RunE:  runCollect,
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "scrape", "collection mode: scrape, rss, hwpx, keyword")
	cmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "source key or display name (repeatable, comma-separated, or \"all\")")
	cmd.Flags().IntVar(&startPage, "start-page", 1, "first listing page")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "last listing page (0 = source default)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "pages for scrape/hwpx, entries for rss, results per keyword (0 = default)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the run report to this JSON file")
	cmd.Flags().BoolVar(&noContent, "no-content", false, "skip body text fetching and document extraction")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the document-mode browser headless")

	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode, err := types.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	req := &types.CollectionRequest{
		Mode:           mode,
		SelectedKeys:   sources,
		Pages:          types.PageRange{Start: startPage, End: endPage},
		Limit:          limit,
		IncludeContent: !noContent,
		Headless:       headlessSetting(cmd, cfg),
	}

	client, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer client.Close()

	deps := collector.Deps{
		Config:     cfg,
		Client:     client,
		Normalizer: normalize.New(cfg.Normalizer.TrackingParams),
		Logger:     logger,
	}
	orch := orchestrator.New(cfg, registry.Build(cfg), deps, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	report, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := storage.WriteReport(outputPath, report, logger); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	inserted := len(report.AllArticles())
	if cfg.Storage.Backend != "" && cfg.Storage.Backend != "none" {
		inserted, err = persist(ctx, cfg, report, logger)
		if err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("\nCollection complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Mode:      %s\n", report.Mode)
	fmt.Printf("  Sources:   %d\n", len(report.Results))
	fmt.Printf("  Articles:  %d collected, %d new\n", report.TotalArticles, inserted)
	for _, res := range report.Results {
		stats := report.Stats[res.SourceKey]
		line := fmt.Sprintf("    %-16s %3d articles", res.SourceKey, stats.Articles)
		if stats.Errors > 0 {
			line += fmt.Sprintf(", %d item errors", stats.Errors)
		}
		if stats.Structural != "" {
			line += " — FAILED: " + stats.Structural
		}
		fmt.Println(line)
	}
	if outputPath != "" {
		fmt.Printf("  Output:    %s\n", outputPath)
	}
	return nil
}

// persist records the run and its articles, returning the count of newly
// inserted rows.
func persist(ctx context.Context, cfg *config.Config, report *types.RunReport, logger *slog.Logger) (int, error) {
	gateway, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return 0, err
	}
	defer gateway.Close()

	keys := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		keys = append(keys, res.SourceKey)
	}

	runID, err := gateway.SaveRun(ctx, storage.RunMeta{
		Mode:          string(report.Mode),
		Sources:       keys,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		TotalArticles: report.TotalArticles,
	})
	if err != nil {
		return 0, err
	}
	return gateway.SaveArticles(ctx, runID, report.AllArticles())
}

// sourcesCmd creates the "sources" subcommand.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg := registry.Build(cfg)

			kinds := []types.SourceKind{types.KindHTML, types.KindFeed, types.KindDocument, types.KindKeyword}
			for _, kind := range kinds {
				descriptors := reg.ListByKind(kind)
				if len(descriptors) == 0 {
					continue
				}
				fmt.Printf("%s:\n", kind)
				sort.SliceStable(descriptors, func(i, j int) bool {
					return descriptors[i].Key < descriptors[j].Key
				})
				for _, d := range descriptors {
					status := "enabled"
					if !d.Enabled {
						status = "disabled"
					}
					fmt.Printf("  %-16s %-24s %-8s %s\n", d.Key, d.DisplayName, status, d.Endpoint)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsharvest %s\n", config.Version)
		},
	}
}

// setupLogger creates the structured logger from config, with the verbose
// flag forcing debug level.
// headlessSetting picks the document-mode browser headless value: an
// explicit --headless flag wins, otherwise the config knob applies.
func headlessSetting(cmd *cobra.Command, cfg *config.Config) bool {
	if cmd.Flags().Changed("headless") {
		return headless
	}
	return cfg.Browser.Headless
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
