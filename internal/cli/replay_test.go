package cli

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/stages"
)

func TestReplayCommand_Deterministic(t *testing.T) {
	w := newWorkspace(t, "")
	runJSON(t, w)

	out, err := execute(t, "replay", "--config", w.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ processed.final")
	assert.Contains(t, out, "All 11 snapshot(s) deterministic")
}

func TestReplayCommand_PartialRunJSON(t *testing.T) {
	w := newWorkspace(t, "")
	s := runJSON(t, w, "--until", stages.Labels)

	out, err := execute(t, "replay", "--config", w.config, "--run", s.RunID, "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, s.RunID, resp.Data.RunID)
	assert.True(t, resp.Data.Deterministic)
	assert.Len(t, resp.Data.Snapshots, 6)
}

func TestReplayCommand_DetectsDifferentSalt(t *testing.T) {
	w := newWorkspace(t, "")
	runJSON(t, w)

	t.Setenv("RECSET_SALT", "pepper")
	out, err := execute(t, "replay", "--config", w.config)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ processed.cleaned")
	assert.Contains(t, out, "✗ processed.final")
}

func TestReplayCommand_RunWithoutRawData(t *testing.T) {
	w := newWorkspace(t, "")
	runJSON(t, w, "--until", stages.Labels)
	s := runJSON(t, w, "--from", stages.Sampling)

	_, err := execute(t, "replay", "--config", w.config, "--run", s.RunID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "did not commit raw.users")
}

func TestReplayCommand_EmptyStore(t *testing.T) {
	w := newWorkspace(t, "")

	_, err := execute(t, "replay", "--config", w.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no runs found")
}
