package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/recset/internal/dataset"
)

// Default file names inside a Files directory.
const (
	UsersFile           = "users.jsonl"
	RecommendationsFile = "recommendations.jsonl"
	SearchesFile        = "searches.jsonl"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 16 << 20

// Files reads raw record sets from JSON lines files in Dir.
type Files struct {
	Dir    string
	Logger *slog.Logger
}

// Users loads users.jsonl.
func (f Files) Users(ctx context.Context) (*dataset.Dataset, error) {
	return f.load(ctx, UsersFile, dataset.UserColumns)
}

// Recommendations loads recommendations.jsonl.
func (f Files) Recommendations(ctx context.Context) (*dataset.Dataset, error) {
	return f.load(ctx, RecommendationsFile, dataset.RecommendationColumns)
}

// Searches loads searches.jsonl and keeps the most recent search per user.
func (f Files) Searches(ctx context.Context) (*dataset.Dataset, error) {
	all, err := f.load(ctx, SearchesFile, dataset.SearchColumns)
	if err != nil {
		return nil, err
	}
	recent := MostRecentSearches(all)
	f.logger().Info("keeping most recent search per user", "searches", all.Len(), "kept", recent.Len())
	return recent, nil
}

func (f Files) load(ctx context.Context, name string, columns []string) (*dataset.Dataset, error) {
	path := filepath.Join(f.Dir, name)
	ds, badTimes, err := ReadJSONL(ctx, path, columns)
	if err != nil {
		return nil, err
	}
	if badTimes > 0 {
		f.logger().Warn("unparseable timestamps set to null", "file", name, "count", badTimes)
	}
	f.logger().Info("loaded raw records", "file", name, "rows", ds.Len())
	return ds, nil
}

func (f Files) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// ReadJSONL reads one JSON object per line into a dataset with the given
// columns. Blank lines are skipped. It returns the number of timestamps that
// did not parse and were left null.
func ReadJSONL(ctx context.Context, path string, columns []string) (*dataset.Dataset, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	ds, err := dataset.New(columns...)
	if err != nil {
		return nil, 0, err
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	line, badTimes := 0, 0
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		text := scanner.Bytes()
		if len(trimSpace(text)) == 0 {
			continue
		}
		r, bad, err := dataset.DecodeRow(columns, text)
		if err != nil {
			return nil, 0, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		badTimes += bad
		ds.Append(r)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, 0, fmt.Errorf("%s:%d: line exceeds %d bytes", path, line+1, maxLineBytes)
		}
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, badTimes, nil
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
