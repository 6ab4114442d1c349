package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recset/internal/config"
	"github.com/roach88/recset/internal/contract"
	"github.com/roach88/recset/internal/export"
	"github.com/roach88/recset/internal/metrics"
	"github.com/roach88/recset/internal/pipeline"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/stages"
	"github.com/roach88/recset/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	SourceDir string
	OutputDir string
	From      string
	Until     string
	Resume    string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs pipeline.RunIDGenerator

	// Clock overrides the wall clock (for testing).
	Clock func() time.Time
}

// RunSummary is the result of a pipeline run.
type RunSummary struct {
	RunID     string            `json:"run_id"`
	Version   string            `json:"version"`
	Executed  []string          `json:"executed"`
	Skipped   []string          `json:"skipped"`
	Snapshots []SnapshotSummary `json:"snapshots"`
	OutputDir string            `json:"output_dir,omitempty"`
}

// SnapshotSummary describes one snapshot produced or loaded by a run.
type SnapshotSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a dataset version",
		Long: `Run the dataset pipeline.

Stages run in order, each committing its output snapshots to the SQLite
store before the next starts. The export stage validates the split and
publishes Parquet files, metadata, a quality report and a CSV sample to
<output-dir>/v<version>/.

--from skips earlier stages and loads their outputs from the latest
committed snapshots. --until stops after the named stage. --resume
continues a failed run, skipping stages it already committed.

Exit codes:
  0 - Run succeeded
  1 - A stage failed
  2 - Command error (bad config, unknown stage, unreachable source)

Examples:
  recset run
  recset run --config prod.yaml --output ./datasets
  recset run --from sampling
  recset run --until labels --format json
  recset run --resume 0190a6f2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot store (overrides store.path)")
	cmd.Flags().StringVar(&opts.SourceDir, "source", "", "directory of raw JSON lines files (overrides source.dir, implies source.kind=file)")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "artifact directory (overrides output.dir)")
	cmd.Flags().StringVar(&opts.From, "from", "", "first stage to execute")
	cmd.Flags().StringVar(&opts.Until, "until", "", "last stage to execute")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "run id to resume")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, opts)

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	// Pin the reference time so the stored config replays identically.
	if cfg.Pipeline.ReferenceTime == "" {
		cfg.Pipeline.ReferenceTime = clock().UTC().Format(time.RFC3339)
	}

	logger := newLogger(cfg.Logging, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, db, err := openSource(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open source", err)
	}
	if db != nil {
		defer db.Close()
	}

	var contracts *contract.Set
	if cfg.Output.ContractsDir != "" {
		contracts, err = contract.Load(cfg.Output.ContractsDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load contracts", err)
		}
	}

	logger.Info("opening store", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	params := stageParams(cfg, clock)
	params.Export = export.Options{
		OutputDir:  cfg.Output.Dir,
		SampleRows: cfg.Output.SampleRows,
		Parquet:    cfg.Output.Parquet,
		Report:     cfg.Output.Report,
		Contracts:  contracts,
		Logger:     logger,
	}

	collector := metrics.New()
	engOpts := []pipeline.EngineOption{
		pipeline.WithLogger(logger),
		pipeline.WithObserver(collector),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, pipeline.WithRunIDGenerator(opts.RunIDs))
	}
	eng, err := pipeline.New(st, stages.Build(src, params), engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to plan pipeline", err)
	}

	res, runErr := eng.Run(ctx, pipeline.RunOptions{
		Version: cfg.Version,
		Config:  cfg.Redacted(),
		From:    opts.From,
		Until:   opts.Until,
		Resume:  opts.Resume,
	})

	collector.RunFinished(clock())
	if cfg.Metrics.File != "" {
		if err := collector.WriteTextfile(cfg.Metrics.File); err != nil {
			logger.Error("failed to write metrics", "path", cfg.Metrics.File, "error", err)
		}
	}

	if runErr != nil {
		code := ExitFailure
		if pipeline.CodeOf(runErr) == pipeline.ErrCodeUnknownStage {
			code = ExitCommandError
		}
		runID := ""
		if res != nil {
			runID = res.RunID
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Failure(runID, runErr); err != nil {
			logger.Error("failed to write response", "error", err)
		}
		return WrapExitError(code, "pipeline failed", runErr)
	}

	summary := summarize(res, cfg, eng.Stages())
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: summary, RunID: summary.RunID})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s succeeded (dataset v%s)\n", summary.RunID, summary.Version)
	fmt.Fprintf(w, "  executed: %d stage(s), skipped: %d\n", len(summary.Executed), len(summary.Skipped))
	for _, s := range summary.Snapshots {
		fmt.Fprintf(w, "  %-32s %8d rows\n", s.Name, s.Rows)
	}
	if summary.OutputDir != "" {
		fmt.Fprintf(w, "Artifacts: %s\n", summary.OutputDir)
	}
	return nil
}

func applyRunFlags(cfg *config.Config, opts *RunOptions) {
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.SourceDir != "" {
		cfg.Source.Kind = config.SourceFile
		cfg.Source.Dir = opts.SourceDir
	}
	if opts.OutputDir != "" {
		cfg.Output.Dir = opts.OutputDir
	}
}

// openSource returns the configured extractor. The database handle is
// non-nil for the postgres source and must be closed by the caller.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (source.Extractor, *sql.DB, error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		db, err := source.OpenPostgres(ctx, cfg.Source.DSN)
		if err != nil {
			return nil, nil, err
		}
		return source.Postgres{DB: db, WindowDays: cfg.Source.WindowDays, Logger: logger}, db, nil
	case config.SourceFile:
		if _, err := os.Stat(cfg.Source.Dir); err != nil {
			return nil, nil, fmt.Errorf("source directory: %w", err)
		}
		return source.Files{Dir: cfg.Source.Dir, Logger: logger}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// stageParams maps configuration to stage parameters. Publishing is left
// disabled.
func stageParams(cfg *config.Config, clock func() time.Time) stages.Params {
	return stages.Params{
		Version:         cfg.Version,
		WindowDays:      cfg.Source.WindowDays,
		Now:             cfg.Now(clock().UTC()),
		NegativeRatio:   cfg.Pipeline.NegativeRatio,
		TestSize:        cfg.Pipeline.TestSize,
		Seed:            cfg.Pipeline.Seed,
		RareThreshold:   cfg.Pipeline.RareThreshold,
		Salt:            cfg.Pipeline.Salt,
		ClipVectorsOnly: cfg.Pipeline.ClipVectorsOnly,
		Clock:           clock,
	}
}

func summarize(res *pipeline.Result, cfg *config.Config, planned []pipeline.Stage) RunSummary {
	s := RunSummary{
		RunID:     res.RunID,
		Version:   cfg.Version,
		Executed:  append([]string{}, res.Executed...),
		Skipped:   append([]string{}, res.Skipped...),
		Snapshots: []SnapshotSummary{},
	}
	for _, st := range planned {
		for _, name := range st.Outputs {
			if ds, ok := res.Outputs[name]; ok {
				s.Snapshots = append(s.Snapshots, SnapshotSummary{Name: name, Rows: ds.Len()})
			}
		}
	}
	for _, name := range res.Executed {
		if name == stages.Export && cfg.Output.Dir != "" {
			s.OutputDir = filepath.Join(cfg.Output.Dir, "v"+cfg.Version)
		}
	}
	return s
}
