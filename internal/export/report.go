package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"slices"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/labels"
)

//go:embed templates/quality_report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/quality_report.html.tmpl"))

// missingWarnPct is the share of nulls above which a column is flagged.
const missingWarnPct = 10.0

// ReportData is everything the quality report renders.
type ReportData struct {
	Version        string
	CreatedAt      string
	TrainRows      int
	TestRows       int
	TotalRows      int
	TrainPct       float64
	TestPct        float64
	NumFeatures    int
	MissingPct     float64
	Labels         []LabelRow
	BookingRatePct float64
	PlotFile       string
	Missing        []MissingRow
	Checks         []Check
}

type LabelRow struct {
	Score   string
	Count   int
	Pct     float64
	Meaning string
}

type MissingRow struct {
	Column string
	Count  int
	Pct    float64
	Warn   bool
}

// Check is one line of the quality checklist.
type Check struct {
	Name   string
	Passed bool
}

// BuildReport derives report data from the partitions and their metadata.
// plotFile is the relative image path, or empty when no plot was rendered.
func BuildReport(train, test *dataset.Dataset, meta Metadata, plotFile string) ReportData {
	total := train.Len() + test.Len()
	rd := ReportData{
		Version:        meta.Version,
		CreatedAt:      meta.CreatedAt,
		TrainRows:      train.Len(),
		TestRows:       test.Len(),
		TotalRows:      total,
		TrainPct:       pct(train.Len(), total),
		TestPct:        pct(test.Len(), total),
		NumFeatures:    meta.Dataset.NumFeatures,
		BookingRatePct: meta.Labels.BookingRate * 100,
		PlotFile:       plotFile,
	}

	dist := meta.Labels.EngagementScoreDistribution
	for _, score := range labels.LegalScores {
		key := ScoreKey(score)
		n, ok := dist[key]
		if !ok {
			continue
		}
		rd.Labels = append(rd.Labels, LabelRow{Score: key, Count: n, Pct: pct(n, train.Len()), Meaning: labels.Meanings[score]})
	}

	cells, nulls := 0, 0
	for _, name := range train.Columns() {
		n := train.NullCount(name)
		cells += train.Len()
		nulls += n
		if n > 0 {
			p := pct(n, train.Len())
			rd.Missing = append(rd.Missing, MissingRow{Column: name, Count: n, Pct: p, Warn: p > missingWarnPct})
		}
	}
	rd.MissingPct = pct(nulls, cells)

	rd.Checks = []Check{
		{Name: "No PII columns in export", Passed: !slices.ContainsFunc(dataset.PIIColumns(), train.Has)},
		{Name: "Required columns present", Passed: !slices.ContainsFunc(dataset.RequiredColumns(), func(c string) bool { return !train.Has(c) })},
		{Name: "Engagement scores in legal set", Passed: legalScores(train) && legalScores(test)},
		{Name: "Test partition non-empty", Passed: test.Len() > 0},
		{Name: "Missing values below 10%", Passed: rd.MissingPct < missingWarnPct},
	}
	return rd
}

// RenderReport renders the HTML quality report.
func RenderReport(rd ReportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, rd); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func legalScores(ds *dataset.Dataset) bool {
	for _, v := range ds.Numbers(dataset.ColEngagementScore) {
		if !slices.Contains(labels.LegalScores, v) {
			return false
		}
	}
	return true
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
