package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/export"
	"github.com/roach88/recset/internal/pipeline"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/stages"
	"github.com/roach88/recset/internal/store"
	"github.com/roach88/recset/internal/testutil"
)

// Harness executes scenarios against a snapshot store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes pipeline logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New returns a harness writing snapshots to st.
func New(st *store.Store, opts ...Option) *Harness {
	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario against a fresh temporary store.
//
// The returned error reports harness failures (bad input rows, store I/O).
// Pipeline failures are recorded on the result and checked by assertions.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "recset-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	return New(st).Run(context.Background(), scenario)
}

// Run executes one scenario. Artifact publishing is always disabled.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	params, err := buildParams(scenario.Params)
	if err != nil {
		return nil, err
	}
	src, err := buildExtractor(scenario.Input)
	if err != nil {
		return nil, err
	}

	eng, err := pipeline.New(h.store, stages.Build(src, params),
		pipeline.WithRunIDGenerator(pipeline.NewFixedGenerator("scenario-"+scenario.Name)),
		pipeline.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	result := NewResult()
	res, runErr := eng.Run(ctx, pipeline.RunOptions{
		Version: params.Version,
		Config:  scenario.Params,
		Until:   scenario.Params.Until,
	})
	if res != nil {
		result.Executed = append(result.Executed, res.Executed...)
		result.Outputs = res.Outputs
	}
	result.RunErr = runErr

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func buildParams(p Params) (stages.Params, error) {
	now, ok := dataset.ParseTime(p.ReferenceTime)
	if !ok {
		return stages.Params{}, fmt.Errorf("params.reference_time: cannot parse %q", p.ReferenceTime)
	}
	return stages.Params{
		Version:         p.Version,
		WindowDays:      p.WindowDays,
		Now:             now,
		NegativeRatio:   p.NegativeRatio,
		TestSize:        p.TestSize,
		Seed:            p.Seed,
		RareThreshold:   p.RareThreshold,
		Salt:            p.Salt,
		ClipVectorsOnly: p.ClipVectorsOnly,
		Export:          export.Options{},
		Clock:           func() time.Time { return now },
	}, nil
}

// buildExtractor decodes the scenario rows the way the JSON lines loader
// does. Searches are reduced to the most recent one per user.
func buildExtractor(in Input) (*testutil.Extractor, error) {
	users, err := decodeRows("users", dataset.UserColumns, in.Users)
	if err != nil {
		return nil, err
	}
	recs, err := decodeRows("recommendations", dataset.RecommendationColumns, in.Recommendations)
	if err != nil {
		return nil, err
	}
	searches, err := decodeRows("searches", dataset.SearchColumns, in.Searches)
	if err != nil {
		return nil, err
	}

	all := dataset.MustNew(dataset.SearchColumns...)
	all.Append(searches...)
	return &testutil.Extractor{
		UsersRows:           users,
		RecommendationsRows: recs,
		SearchesRows:        source.MostRecentSearches(all).Rows,
	}, nil
}

func decodeRows(set string, columns []string, rows []Row) ([]*dataset.Record, error) {
	out := make([]*dataset.Record, 0, len(rows))
	for i, row := range rows {
		payload, err := json.Marshal(map[string]any(row))
		if err != nil {
			return nil, fmt.Errorf("input.%s[%d]: %w", set, i, err)
		}
		r, _, err := dataset.DecodeRow(columns, payload)
		if err != nil {
			return nil, fmt.Errorf("input.%s[%d]: %w", set, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
