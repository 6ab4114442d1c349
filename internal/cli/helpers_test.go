package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/testutil"
)

// workspace is a temp directory holding raw data, a config file, a store
// and an output directory.
type workspace struct {
	dir    string
	config string
}

func (w workspace) path(parts ...string) string {
	return filepath.Join(append([]string{w.dir}, parts...)...)
}

// newWorkspace writes three users with 25 recommendations each and a
// config pinning the reference time. extra is appended to the config.
func newWorkspace(t *testing.T, extra string) workspace {
	t.Helper()
	w := workspace{dir: t.TempDir()}
	t.Chdir(w.dir)

	raw := w.path("raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	var users, recs, searches []*dataset.Record
	for i, nat := range []string{"US", "FR", "JP"} {
		user := string(rune('a'+i)) + "-user"
		users = append(users, testutil.User(user, nat))
		recs = append(recs, testutil.Funnel(user+"-rec", user, 25)...)
		searches = append(searches, testutil.Search(user+"-search", user, 30))
	}
	writeJSONL(t, filepath.Join(raw, source.UsersFile), dataset.UserColumns, users)
	writeJSONL(t, filepath.Join(raw, source.RecommendationsFile), dataset.RecommendationColumns, recs)
	writeJSONL(t, filepath.Join(raw, source.SearchesFile), dataset.SearchColumns, searches)

	w.config = w.path("recset.yaml")
	cfg := fmt.Sprintf(`version: "1.0"
source:
  kind: file
  dir: %s
store:
  path: %s
pipeline:
  reference_time: "2024-06-01T12:00:00Z"
output:
  dir: %s
  parquet: false
  report: false
  sample_rows: 10
metrics:
  file: %s
logging:
  level: error
%s`, raw, w.path("recset.db"), w.path("out"), w.path("metrics.prom"), extra)
	require.NoError(t, os.WriteFile(w.config, []byte(cfg), 0o644))
	return w
}

func writeJSONL(t *testing.T, path string, columns []string, rows []*dataset.Record) {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range rows {
		line, err := dataset.EncodeRow(columns, r)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// runJSON executes the pipeline and decodes the summary.
func runJSON(t *testing.T, w workspace, args ...string) RunSummary {
	t.Helper()
	out, err := execute(t, append([]string{"run", "--config", w.config, "--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func rowsOf(s RunSummary, name string) int {
	for _, snap := range s.Snapshots {
		if snap.Name == name {
			return snap.Rows
		}
	}
	return -1
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
