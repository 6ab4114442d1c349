package export

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/recset/internal/dataset"
)

// Metadata describes a published dataset version.
type Metadata struct {
	Version       string         `json:"version"`
	CreatedAt     string         `json:"created_at"`
	Dataset       DatasetInfo    `json:"dataset"`
	Extraction    ExtractionInfo `json:"extraction"`
	Labels        LabelInfo      `json:"labels"`
	SchemaVersion string         `json:"schema_version"`
	Format        string         `json:"format"`
	Compression   string         `json:"compression"`
}

type DatasetInfo struct {
	TrainRows    int      `json:"train_rows"`
	TestRows     int      `json:"test_rows"`
	TotalRows    int      `json:"total_rows"`
	NumFeatures  int      `json:"num_features"`
	FeatureNames []string `json:"feature_names"`
}

type ExtractionInfo struct {
	DataWindowDays int      `json:"data_window_days"`
	ExtractionDate string   `json:"extraction_date"`
	SourceTables   []string `json:"source_tables"`
}

type LabelInfo struct {
	EngagementScoreDistribution map[string]int `json:"engagement_score_distribution"`
	BookingRate                 float64        `json:"booking_rate"`
	AvgUserRating               *float64       `json:"avg_user_rating"`
}

// MetadataInput carries the run facts metadata needs besides the data.
type MetadataInput struct {
	Version        string
	CreatedAt      time.Time
	WindowDays     int
	ExtractionDate time.Time

	// Parquet reports whether train and test are written as Parquet files.
	// Without them the version has no data file format.
	Parquet bool
}

// Storage formats recorded in metadata.
const (
	FormatParquet     = "parquet"
	CompressionSnappy = "snappy"
	FormatNone        = "none"
)

// BuildMetadata summarizes train and test. Label statistics are computed on
// train.
func BuildMetadata(train, test *dataset.Dataset, in MetadataInput) Metadata {
	features := train.Columns()
	meta := Metadata{
		Version:   in.Version,
		CreatedAt: dataset.FormatTime(in.CreatedAt),
		Dataset: DatasetInfo{
			TrainRows:    train.Len(),
			TestRows:     test.Len(),
			TotalRows:    train.Len() + test.Len(),
			NumFeatures:  len(features),
			FeatureNames: features,
		},
		Extraction: ExtractionInfo{
			DataWindowDays: in.WindowDays,
			ExtractionDate: dataset.FormatTime(in.ExtractionDate),
			SourceTables:   append([]string(nil), dataset.SourceTables...),
		},
		Labels: LabelInfo{
			EngagementScoreDistribution: scoreCounts(train),
			BookingRate:                 mean(train.Numbers(dataset.ColBookingProbability)),
			AvgUserRating:               avgRating(train),
		},
		SchemaVersion: dataset.SchemaVersion,
		Format:        FormatNone,
		Compression:   FormatNone,
	}
	if in.Parquet {
		meta.Format, meta.Compression = FormatParquet, CompressionSnappy
	}
	return meta
}

// Encode renders metadata as indented JSON.
func (m Metadata) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// ScoreKey renders an engagement score as a distribution key ("5.0").
func ScoreKey(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

func scoreCounts(ds *dataset.Dataset) map[string]int {
	out := map[string]int{}
	for _, v := range ds.Numbers(dataset.ColEngagementScore) {
		out[ScoreKey(v)]++
	}
	return out
}

func avgRating(ds *dataset.Dataset) *float64 {
	if !ds.Has(dataset.ColUserRating) {
		return nil
	}
	ratings := ds.Numbers(dataset.ColUserRating)
	if len(ratings) == 0 {
		return nil
	}
	m := mean(ratings)
	return &m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
