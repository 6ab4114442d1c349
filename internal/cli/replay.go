package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/recset/internal/config"
	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/pipeline"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/stages"
	"github.com/roach88/recset/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
}

// SnapshotComparison compares one snapshot of the original run with its
// replay.
type SnapshotComparison struct {
	Name     string `json:"name"`
	Original string `json:"original_digest"`
	Replayed string `json:"replayed_digest"`
	Match    bool   `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	RunID         string               `json:"run_id"`
	Snapshots     []SnapshotComparison `json:"snapshots"`
	Deterministic bool                 `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a run from its raw snapshots and verify determinism",
		Long: `Replay a run and verify that it is deterministic.

The raw snapshots the run extracted are fed through the pipeline again,
with the parameters stored on the run, into a scratch store. Every
snapshot digest is compared with the original. Nothing is published and
the store is not modified.

The hashing salt is never stored with a run; the current configuration
supplies it.

Exit codes:
  0 - Every snapshot matches
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, run without raw snapshots, etc.)

Examples:
  recset replay
  recset replay --run 0190a6f2-...
  recset replay --db ./recset.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot store (default: store.path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to replay (default: latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database == "" {
		opts.Database = current.Store.Path
	}
	st, err := openStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	stored, err := storedConfig(run, current)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode run parameters", err)
	}
	original, err := st.ListSnapshots(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	src, err := rawSource(ctx, st, runID)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = newLogger(stored.Logging, true, cmd.ErrOrStderr())
	}
	replayed, err := replayRun(ctx, stored, src, original, logger)
	if err != nil {
		return err
	}

	result := ReplayResult{RunID: runID, Snapshots: []SnapshotComparison{}, Deterministic: true}
	for _, info := range original {
		cmp := SnapshotComparison{Name: info.Name, Original: info.Digest, Replayed: replayed[info.Name]}
		cmp.Match = cmp.Original == cmp.Replayed
		if !cmp.Match {
			result.Deterministic = false
		}
		result.Snapshots = append(result.Snapshots, cmp)
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, RunID: runID}); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// storedConfig decodes the parameters recorded on run. Fields the run does
// not record (salt, credentials) come from current.
func storedConfig(run store.Run, current *config.Config) (*config.Config, error) {
	cfg := *current
	if err := json.Unmarshal([]byte(run.Config), &cfg); err != nil {
		return nil, err
	}
	cfg.Version = run.Version
	cfg.Pipeline.Salt = current.Pipeline.Salt
	cfg.Source.DSN = current.Source.DSN
	return &cfg, nil
}

// rawSource serves the raw snapshots committed by runID.
func rawSource(ctx context.Context, st *store.Store, runID string) (source.Static, error) {
	var sets [3]*dataset.Dataset
	for i, name := range []string{stages.RawUsers, stages.RawRecommendations, stages.RawSearches} {
		ds, _, err := st.ReadSnapshot(ctx, runID, name)
		if errors.Is(err, store.ErrNotFound) {
			return source.Static{}, NewExitError(ExitCommandError,
				fmt.Sprintf("run %s did not commit %s; only runs that extracted their own data can be replayed", runID, name))
		}
		if err != nil {
			return source.Static{}, WrapExitError(ExitCommandError, "failed to read snapshot", err)
		}
		sets[i] = ds
	}
	return source.Static{UsersSet: sets[0], RecommendationsSet: sets[1], SearchesSet: sets[2]}, nil
}

// replayRun executes the pipeline against a scratch store, up to the last
// stage the original run committed, and returns the replayed digests by
// snapshot name.
func replayRun(ctx context.Context, cfg *config.Config, src source.Static, original []store.SnapshotInfo, logger *slog.Logger) (map[string]string, error) {
	dir, err := os.MkdirTemp("", "recset-replay-*")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create scratch dir", err)
	}
	defer os.RemoveAll(dir)

	scratch, err := store.Open(filepath.Join(dir, "replay.db"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open scratch store", err)
	}
	defer scratch.Close()

	planned := stages.Build(src, stageParams(cfg, time.Now))
	until := lastCommittedStage(planned, original)
	if until == "" {
		return map[string]string{}, nil
	}

	eng, err := pipeline.New(scratch, planned,
		pipeline.WithLogger(logger),
		pipeline.WithRunIDGenerator(pipeline.NewFixedGenerator("replay")),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to plan pipeline", err)
	}
	// A replay that fails where the original succeeded shows up as missing
	// digests.
	if _, err := eng.Run(ctx, pipeline.RunOptions{Version: cfg.Version, Until: until}); err != nil {
		logger.Warn("replay failed", "error", err)
	}

	infos, err := scratch.ListSnapshots(ctx, "replay")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list replayed snapshots", err)
	}
	out := make(map[string]string, len(infos))
	for _, info := range infos {
		out[info.Name] = info.Digest
	}
	return out, nil
}

func lastCommittedStage(planned []pipeline.Stage, original []store.SnapshotInfo) string {
	committed := make(map[string]bool, len(original))
	for _, info := range original {
		committed[info.Stage] = true
	}
	last := ""
	for _, st := range planned {
		if committed[st.Name] {
			last = st.Name
		}
	}
	return last
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay of run %s\n\n", result.RunID)
	for _, s := range result.Snapshots {
		switch {
		case s.Match:
			fmt.Fprintf(w, "✓ %s", s.Name)
			if verbose {
				fmt.Fprintf(w, " (%s)", shortDigest(s.Original))
			}
			fmt.Fprintln(w)
		case s.Replayed == "":
			fmt.Fprintf(w, "✗ %s: not produced by replay\n", s.Name)
		default:
			fmt.Fprintf(w, "✗ %s: %s != %s\n", s.Name, shortDigest(s.Original), shortDigest(s.Replayed))
		}
	}
	fmt.Fprintln(w)
	if result.Deterministic {
		fmt.Fprintf(w, "✓ All %d snapshot(s) deterministic\n", len(result.Snapshots))
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}
