package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/store"
)

// InspectOptions holds flags for the inspect commands.
type InspectOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// RunInfo is the listing form of a run.
type RunInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedSeq  int64  `json:"started_seq"`
	FinishedSeq int64  `json:"finished_seq,omitempty"`
}

// SnapshotListing is the listing form of a snapshot.
type SnapshotListing struct {
	Name    string   `json:"name"`
	Stage   string   `json:"stage"`
	RunID   string   `json:"run_id"`
	Seq     int64    `json:"seq"`
	Rows    int      `json:"rows"`
	Digest  string   `json:"digest"`
	Columns []string `json:"columns,omitempty"`
}

// NewInspectCommand creates the inspect command group.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect runs and snapshots in the store",
		Long: `Inspect the snapshot store.

Examples:
  recset inspect runs
  recset inspect snapshots --run 0190a6f2-...
  recset inspect rows processed.labeled --limit 5`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot store (default: store.path)")

	cmd.AddCommand(&cobra.Command{
		Use:           "runs",
		Short:         "List runs, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectRuns(opts, cmd)
		},
	})

	snapshots := &cobra.Command{
		Use:           "snapshots",
		Short:         "List snapshots committed by a run (default: latest run)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectSnapshots(opts, cmd)
		},
	}
	snapshots.Flags().StringVar(&opts.RunID, "run", "", "run id")
	cmd.AddCommand(snapshots)

	rows := &cobra.Command{
		Use:           "rows <snapshot>",
		Short:         "Print snapshot rows as canonical JSON lines",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectRows(opts, args[0], cmd)
		},
	}
	rows.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest commit of any run)")
	rows.Flags().IntVar(&opts.Limit, "limit", 10, "maximum rows to print (0 for all)")
	cmd.AddCommand(rows)

	return cmd
}

func runInspectRuns(opts *InspectOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = RunInfo{
			ID:          r.ID,
			Version:     r.Version,
			Status:      string(r.Status),
			Error:       r.Error,
			StartedSeq:  r.StartedSeq,
			FinishedSeq: r.FinishedSeq,
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
	}
	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, r := range infos {
		fmt.Fprintf(w, "%s  v%-6s %-9s seq %d", r.ID, r.Version, r.Status, r.StartedSeq)
		if r.FinishedSeq > 0 {
			fmt.Fprintf(w, "-%d", r.FinishedSeq)
		}
		fmt.Fprintln(w)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
	return nil
}

func runInspectSnapshots(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	st, err := openStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	infos, err := st.ListSnapshots(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	listing := make([]SnapshotListing, len(infos))
	for i, info := range infos {
		listing[i] = SnapshotListing{
			Name:   info.Name,
			Stage:  info.Stage,
			RunID:  info.RunID,
			Seq:    info.Seq,
			Rows:   info.RowCount,
			Digest: info.Digest,
		}
		if opts.Verbose || opts.Format == "json" {
			listing[i].Columns = info.Columns
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: listing, RunID: runID})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", runID)
	for _, s := range listing {
		fmt.Fprintf(w, "  %4d  %-28s %-24s %8d rows  %s\n", s.Seq, s.Name, s.Stage, s.Rows, shortDigest(s.Digest))
		if len(s.Columns) > 0 {
			fmt.Fprintf(w, "        columns: %s\n", strings.Join(s.Columns, ", "))
		}
	}
	return nil
}

func runInspectRows(opts *InspectOptions, name string, cmd *cobra.Command) error {
	st, err := openStore(opts.Database, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ds, info, err := st.ReadSnapshot(context.Background(), opts.RunID, name)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("snapshot not found: %s", name))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	rows := ds.Rows
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	w := cmd.OutOrStdout()
	if opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s from run %s (seq %d): %d of %d rows\n", name, info.RunID, info.Seq, len(rows), ds.Len())
	}
	for _, r := range rows {
		line, err := dataset.EncodeRow(ds.Columns(), r)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode row", err)
		}
		fmt.Fprintln(w, string(line))
	}
	return nil
}

// resolveRun returns runID, or the most recent run when empty.
func resolveRun(ctx context.Context, st *store.Store, runID string) (string, error) {
	if runID != "" {
		if _, err := st.GetRun(ctx, runID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
			}
			return "", WrapExitError(ExitCommandError, "failed to load run", err)
		}
		return runID, nil
	}
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if len(runs) == 0 {
		return "", NewExitError(ExitCommandError, "no runs found in database")
	}
	return runs[len(runs)-1].ID, nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
