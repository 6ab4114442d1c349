// Package stages binds the dataset components to the pipeline graph.
//
// Each adapter reads its input snapshots, calls one component, reports the
// component's counts through the stage context and returns its output
// snapshots. The components themselves know nothing about snapshots.
package stages

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/recset/internal/anonymize"
	"github.com/roach88/recset/internal/cleaning"
	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/export"
	"github.com/roach88/recset/internal/features"
	"github.com/roach88/recset/internal/labels"
	"github.com/roach88/recset/internal/merge"
	"github.com/roach88/recset/internal/pipeline"
	"github.com/roach88/recset/internal/sampling"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/validate"
)

// Params are the run parameters shared by the stages.
type Params struct {
	Version    string
	WindowDays int

	// Now is the reference time for derived features.
	Now time.Time

	NegativeRatio   float64
	TestSize        float64
	Seed            int64
	RareThreshold   int
	Salt            string
	ClipVectorsOnly bool

	// Export configures artifact publishing. Publishing is skipped when
	// Export.OutputDir is empty.
	Export export.Options

	// Clock stamps metadata. Defaults to time.Now.
	Clock func() time.Time
}

// Build returns the ten pipeline stages reading raw records from src.
func Build(src source.Extractor, p Params) []pipeline.Stage {
	if p.Clock == nil {
		p.Clock = time.Now
	}
	train, test := TrainSnapshot(p.Version), TestSnapshot(p.Version)
	return []pipeline.Stage{
		{
			Name:        ExtractUsers,
			Description: "load user profiles",
			Outputs:     []string{RawUsers},
			Run:         extract(RawUsers, src.Users),
		},
		{
			Name:        ExtractRecommendations,
			Description: "load recommendations with item attributes",
			Outputs:     []string{RawRecommendations},
			Run:         extract(RawRecommendations, src.Recommendations),
		},
		{
			Name:        ExtractSearches,
			Description: "load the most recent search per user",
			Outputs:     []string{RawSearches},
			Run:         extract(RawSearches, src.Searches),
		},
		{
			Name:        Merge,
			Description: "left-join recommendations, users and searches",
			Inputs:      []string{RawRecommendations, RawUsers, RawSearches},
			Outputs:     []string{Merged},
			Run:         runMerge,
		},
		{
			Name:        Features,
			Description: "unpack vectors and derive temporal and profile features",
			Inputs:      []string{Merged},
			Outputs:     []string{Featured},
			Run:         p.runFeatures,
		},
		{
			Name:        Labels,
			Description: "derive engagement labels",
			Inputs:      []string{Featured},
			Outputs:     []string{Labeled},
			Run:         runLabels,
		},
		{
			Name:        Sampling,
			Description: "balance negatives against positives",
			Inputs:      []string{Labeled},
			Outputs:     []string{Balanced},
			Run:         p.runSampling,
		},
		{
			Name:        Cleaning,
			Description: "drop, impute, remove outliers, clip and deduplicate",
			Inputs:      []string{Balanced},
			Outputs:     []string{Cleaned},
			Run:         p.runCleaning,
		},
		{
			Name:        Anonymize,
			Description: "hash identifiers, generalize and drop PII",
			Inputs:      []string{Cleaned},
			Outputs:     []string{Final},
			Run:         p.runAnonymize,
		},
		{
			Name:        Export,
			Description: "split, validate and publish the dataset version",
			Inputs:      []string{Final},
			Outputs:     []string{train, test},
			Run:         p.runExport,
			AfterCommit: p.publish,
		},
	}
}

func extract(name string, load func(context.Context) (*dataset.Dataset, error)) pipeline.StageFunc {
	return func(ctx context.Context, sc *pipeline.StageContext, _ pipeline.Datasets) (pipeline.Datasets, error) {
		ds, err := load(ctx)
		if err != nil {
			return nil, err
		}
		sc.Count("rows_extracted", ds.Len())
		return pipeline.Datasets{name: ds}, nil
	}
}

func runMerge(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds, stats, err := merge.Merge(in[RawRecommendations], in[RawUsers], in[RawSearches])
	if err != nil {
		return nil, err
	}
	sc.Anomaly("rows_without_user", stats.WithoutUser)
	sc.Count("rows_without_search", stats.WithoutSearch)
	sc.Count("user_vector_from_profile", stats.VectorFromUser)
	sc.Count("segment_from_profile", stats.SegmentFromUser)
	return pipeline.Datasets{Merged: ds}, nil
}

func (p Params) runFeatures(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds := in[Merged]
	stats, err := features.Engineer(ds, features.Options{Now: p.Now})
	if err != nil {
		return nil, err
	}
	sc.Anomaly("user_vector_defaulted", stats.UserVectorsDefaulted)
	sc.Anomaly("item_vector_defaulted", stats.ItemVectorsDefaulted)
	return pipeline.Datasets{Featured: ds}, nil
}

func runLabels(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds := in[Featured]
	dist, err := labels.Construct(ds)
	if err != nil {
		return nil, err
	}
	for _, score := range labels.LegalScores {
		sc.Count("label_"+strings.ToLower(labels.InteractionType(score)), dist[score])
	}
	return pipeline.Datasets{Labeled: ds}, nil
}

func (p Params) runSampling(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds, stats, err := sampling.Balance(in[Labeled], sampling.Options{Ratio: p.NegativeRatio, Seed: p.Seed})
	if err != nil {
		return nil, err
	}
	sc.Logger.Info("balanced",
		"positives", stats.Positives,
		"negatives_available", stats.NegativesAvailable,
		"negatives_target", stats.NegativesTarget,
		"negatives_kept", stats.NegativesKept)
	if stats.Short {
		sc.Logger.Warn("fewer negatives than target; keeping all", "available", stats.NegativesAvailable, "target", stats.NegativesTarget)
	}
	sc.Anomaly("rejected_dropped", stats.RejectedDropped)
	sc.Anomaly("unlabeled_dropped", stats.Unlabeled)
	return pipeline.Datasets{Balanced: ds}, nil
}

func (p Params) runCleaning(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds := in[Balanced]
	stats := cleaning.Clean(ds, cleaning.Options{ClipVectorsOnly: p.ClipVectorsOnly})
	perColumn(sc, "rows_dropped_missing", stats.MissingDropped, true)
	perColumn(sc, "values_imputed", stats.Imputed, false)
	perColumn(sc, "outliers_removed", stats.Outliers, true)
	perColumn(sc, "values_clipped", stats.Clipped, true)
	sc.Anomaly("duplicates_removed", stats.Duplicates)
	return pipeline.Datasets{Cleaned: ds}, nil
}

func (p Params) runAnonymize(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	ds := in[Cleaned]
	stats, err := anonymize.Anonymize(ds, anonymize.Options{RareThreshold: p.RareThreshold, Salt: p.Salt})
	if err != nil {
		return nil, err
	}
	perColumn(sc, "rare_values_suppressed", stats.RareValues, false)
	sc.Anomaly("age_out_of_range", stats.AgeOutOfRange)
	sc.Logger.Info("identifiers removed", "columns", stats.DroppedPII)
	return pipeline.Datasets{Final: ds}, nil
}

func (p Params) runExport(_ context.Context, sc *pipeline.StageContext, in pipeline.Datasets) (pipeline.Datasets, error) {
	train, test, err := export.Split(in[Final], p.TestSize, p.Seed)
	if err != nil {
		return nil, err
	}
	for _, part := range []struct {
		name string
		ds   *dataset.Dataset
	}{{"train", train}, {"test", test}} {
		report, err := validate.Dataset(part.ds)
		if err != nil {
			return nil, fmt.Errorf("%s partition: %w", part.name, err)
		}
		perColumn(sc, part.name+"_values_clipped", report.Clipped, true)
	}
	// Contract violations fail the stage before anything is committed.
	if _, err := export.CheckMetadata(p.metadata(train, test, p.Clock()), p.Export.Contracts); err != nil {
		return nil, err
	}
	sc.Logger.Info("split", "train", train.Len(), "test", test.Len())
	return pipeline.Datasets{TrainSnapshot(p.Version): train, TestSnapshot(p.Version): test}, nil
}

func (p Params) metadata(train, test *dataset.Dataset, now time.Time) export.Metadata {
	return export.BuildMetadata(train, test, export.MetadataInput{
		Version:        p.Version,
		CreatedAt:      now,
		WindowDays:     p.WindowDays,
		ExtractionDate: now,
		Parquet:        p.Export.Parquet,
	})
}

func (p Params) publish(ctx context.Context, sc *pipeline.StageContext, out pipeline.Datasets) error {
	if p.Export.OutputDir == "" {
		sc.Logger.Info("artifact publishing disabled")
		return nil
	}
	train, test := out[TrainSnapshot(p.Version)], out[TestSnapshot(p.Version)]
	meta := p.metadata(train, test, p.Clock())
	opts := p.Export
	if opts.Logger == nil {
		opts.Logger = sc.Logger
	}
	art, err := export.Publish(ctx, train, test, meta, opts)
	if err != nil {
		return err
	}
	sc.Count("artifacts_written", len(art.Files))
	return nil
}

// perColumn reports the total of a per-column count map and logs the
// breakdown at debug level.
func perColumn(sc *pipeline.StageContext, event string, counts map[string]int, anomaly bool) {
	total := 0
	for _, col := range slices.Sorted(maps.Keys(counts)) {
		if n := counts[col]; n > 0 {
			total += n
			sc.Logger.Debug(event, "column", col, "count", n)
		}
	}
	if anomaly {
		sc.Anomaly(event, total)
	} else {
		sc.Count(event, total)
	}
}
