package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_StageEvents(t *testing.T) {
	c := New()
	c.StageFinished("merge", 120, 50*time.Millisecond, nil)
	c.StageFinished("merge", 0, time.Millisecond, errors.New("boom"))
	c.Count("cleaning", "values_clipped", 3)
	c.Count("cleaning", "values_clipped", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageRuns.WithLabelValues("merge", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageRuns.WithLabelValues("merge", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.stageRows.WithLabelValues("merge")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.events.WithLabelValues("cleaning", "values_clipped")))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := New()
	c.StageFinished("labels", 10, time.Second, nil)
	c.RunFinished(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "recset.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `recset_stage_output_rows{stage="labels"} 10`)
	assert.True(t, strings.Contains(out, "recset_last_run_timestamp_seconds 1.7e+09"))
}
