package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/comicshrink/internal/api"
	"github.com/newthinker/comicshrink/internal/config"
	"github.com/newthinker/comicshrink/internal/job"
	"github.com/newthinker/comicshrink/internal/logger"
	"github.com/newthinker/comicshrink/internal/metrics"
	"github.com/newthinker/comicshrink/internal/pipeline"
	"github.com/newthinker/comicshrink/internal/progress"
	"github.com/newthinker/comicshrink/internal/report"
	"github.com/newthinker/comicshrink/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	compressInput        string
	compressOutput       string
	compressLevel        float64
	compressConcurrency  int
	compressSkipExisting bool
	compressReport       string
	compressMetricsFile  string
	compressMetricsAddr  string
	compressNoProgress   bool
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Recompress every .cbz archive under a directory",
	Long: `Walk the input directory for .cbz archives and write a recompressed copy of
each one to the same relative location under the output directory.

The level is the maximum visual difference, in percent, a re-encoded page may
have from the original. Higher levels compress harder.`,
	Args: cobra.NoArgs,
	RunE: runCompress,
}

func init() {
	defaults := config.Defaults()
	f := compressCmd.Flags()
	f.StringVarP(&compressInput, "input", "i", defaults.Paths.Input, "directory to search for .cbz archives")
	f.StringVarP(&compressOutput, "output", "o", defaults.Paths.Output, "directory to write compressed archives to")
	f.Float64VarP(&compressLevel, "level", "l", defaults.Compression.Level, "maximum visual difference in percent (0-100)")
	f.IntVarP(&compressConcurrency, "concurrency", "j", 0, "concurrent image encodes (default: number of CPUs)")
	f.BoolVar(&compressSkipExisting, "skip-existing", false, "skip archives whose output already exists")
	f.StringVar(&compressReport, "report", "", "write a CSV report of every archive to this path")
	f.StringVar(&compressMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")
	f.StringVar(&compressMetricsAddr, "metrics-addr", "", "serve /metrics and /api/jobs on this address while running")
	f.BoolVar(&compressNoProgress, "no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(compressCmd)
}

// loadConfig merges the config file, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Paths.Input = compressInput
	}
	if flags.Changed("output") {
		cfg.Paths.Output = compressOutput
	}
	if flags.Changed("level") {
		cfg.Compression.Level = compressLevel
	}
	if flags.Changed("concurrency") {
		cfg.Compression.Concurrency = compressConcurrency
	}
	if flags.Changed("skip-existing") {
		cfg.Paths.SkipExisting = compressSkipExisting
	}
	if flags.Changed("report") {
		cfg.Report.Path = compressReport
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = compressMetricsFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Listen = compressMetricsAddr
	}
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Listen != "" {
		cfg.Metrics.Enabled = true
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	outputDir, err := pipeline.ResolveOutputDir(cfg.Paths.Input, cfg.Paths.Output)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}

	sink, err := storage.New(cfg.StorageBackend())
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	if sink != nil {
		log.Info("publishing outputs", zap.Stringer("sink", sink))
	}

	notifiers, err := buildNotifiers(cfg.Notify)
	if err != nil {
		return fmt.Errorf("creating notifiers: %w", err)
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := cfg.Options()
	log.Info("starting comicshrink",
		zap.String("input", cfg.Paths.Input),
		zap.String("output", outputDir),
		zap.Float64("level", opts.CompressionLevel),
		zap.Int("concurrency", opts.ConcurrencyLimit),
		zap.String("storage", cfg.Storage.Type),
	)

	coord := pipeline.New(pipeline.Config{
		Options:  opts,
		Logger:   log,
		Metrics:  reg,
		Progress: progress.New(os.Stdout, !compressNoProgress),
	})
	jobs := job.NewStore()
	if cfg.Metrics.Listen != "" {
		srv := api.NewServer(cfg.Metrics.Listen, jobs, reg, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	batch := pipeline.NewBatch(pipeline.BatchConfig{
		InputDir:     cfg.Paths.Input,
		OutputDir:    outputDir,
		SkipExisting: cfg.Paths.SkipExisting,
		Coordinator:  coord,
		Jobs:         jobs,
		Sink:         sink,
		Logger:       log,
		Metrics:      reg,
	})

	summary, runErr := batch.Run(ctx)

	if cfg.Report.Path != "" {
		if err := report.Write(cfg.Report.Path, report.FromJobs(jobs.List())); err != nil {
			log.Error("cannot write report", zap.String("path", cfg.Report.Path), zap.Error(err))
		} else {
			log.Info("report written", zap.String("path", cfg.Report.Path))
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error("cannot write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if notifiers.Len() > 0 {
		nctx, cancel := notifyContext()
		err := notifiers.NotifyAll(nctx, runSummary(cfg.Paths.Input, outputDir, summary, jobs.List()))
		cancel()
		if err != nil {
			log.Error("cannot deliver run summary", zap.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d archives failed: %w", summary.Failed, summary.Total, runErr)
	}
	return nil
}
