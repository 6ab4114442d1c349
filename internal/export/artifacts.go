package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/recset/internal/contract"
	"github.com/roach88/recset/internal/dataset"
)

// PlotFile is the file name of the distributions figure.
const PlotFile = "distributions.png"

// Options selects which artifacts are written and where.
type Options struct {
	// OutputDir receives one v<version> directory per published version.
	OutputDir string

	// SampleRows bounds the CSV preview. Zero disables it.
	SampleRows int

	// Parquet writes train and test as Parquet; disabled, only metadata,
	// report and sample are produced.
	Parquet bool

	// Report writes the HTML report and the distributions figure.
	Report bool

	// Contracts checks metadata before anything is written. Nil uses the
	// built-in contracts.
	Contracts *contract.Set

	Logger *slog.Logger
}

// Artifacts lists what Publish wrote.
type Artifacts struct {
	Dir   string
	Files []string
}

// FileNames returns the artifact file names for a version.
func FileNames(version string) (train, test, metadata, report, sample string) {
	return fmt.Sprintf("train_v%s.parquet", version),
		fmt.Sprintf("test_v%s.parquet", version),
		fmt.Sprintf("metadata_v%s.json", version),
		fmt.Sprintf("quality_report_v%s.html", version),
		"train_sample.csv"
}

// CheckMetadata encodes meta and checks it against contracts, or the
// built-in contracts when contracts is nil. It returns the encoded JSON.
func CheckMetadata(meta Metadata, contracts *contract.Set) ([]byte, error) {
	if contracts == nil {
		var err error
		if contracts, err = contract.Default(); err != nil {
			return nil, err
		}
	}
	metaJSON, err := meta.Encode()
	if err != nil {
		return nil, err
	}
	if err := contracts.CheckMetadata(metaJSON); err != nil {
		return nil, fmt.Errorf("metadata contract: %w", err)
	}
	return metaJSON, nil
}

// Publish writes the artifacts of a validated split to
// <OutputDir>/v<version>/. Metadata is checked against the contracts
// first, so a contract violation leaves the directory untouched.
func Publish(ctx context.Context, train, test *dataset.Dataset, meta Metadata, opts Options) (Artifacts, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Parquet != (meta.Format == FormatParquet) {
		return Artifacts{}, fmt.Errorf("metadata format %q does not match parquet=%t", meta.Format, opts.Parquet)
	}
	metaJSON, err := CheckMetadata(meta, opts.Contracts)
	if err != nil {
		return Artifacts{}, err
	}

	out := Artifacts{Dir: filepath.Join(opts.OutputDir, "v"+meta.Version)}
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return out, fmt.Errorf("create output directory: %w", err)
	}
	trainFile, testFile, metaFile, reportFile, sampleFile := FileNames(meta.Version)

	write := func(name string, data []byte) error {
		path := filepath.Join(out.Dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		out.Files = append(out.Files, path)
		logger.Info("artifact written", "path", path, "bytes", len(data))
		return nil
	}

	if opts.Parquet {
		pw, err := NewParquetWriter()
		if err != nil {
			return out, err
		}
		defer pw.Close()
		for _, part := range []struct {
			name string
			ds   *dataset.Dataset
		}{{trainFile, train}, {testFile, test}} {
			path := filepath.Join(out.Dir, part.name)
			if err := pw.Write(ctx, part.ds, path); err != nil {
				return out, err
			}
			out.Files = append(out.Files, path)
			logger.Info("artifact written", "path", path, "rows", part.ds.Len())
		}
	}

	if err := write(metaFile, metaJSON); err != nil {
		return out, err
	}

	if opts.Report {
		png, err := RenderPanels(DistributionPanels(train))
		if err != nil {
			return out, err
		}
		if err := write(PlotFile, png); err != nil {
			return out, err
		}
		html, err := RenderReport(BuildReport(train, test, meta, PlotFile))
		if err != nil {
			return out, err
		}
		if err := write(reportFile, html); err != nil {
			return out, err
		}
	}

	if opts.SampleRows > 0 {
		csv, err := SampleCSV(train, opts.SampleRows)
		if err != nil {
			return out, err
		}
		if err := write(sampleFile, csv); err != nil {
			return out, err
		}
	}
	return out, nil
}
