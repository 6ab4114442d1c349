package cli

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesCommand_Text(t *testing.T) {
	out, err := execute(t, "stages")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 10)
	assert.Contains(t, got[0], "extract.users")
	assert.Contains(t, got[9], "export")
}

func TestStagesCommand_VerboseShowsSnapshots(t *testing.T) {
	out, err := execute(t, "stages", "-v", "--version", "2.1")
	require.NoError(t, err)
	assert.Contains(t, out, "commits: datasets.v2.1.train, datasets.v2.1.test")
	assert.Contains(t, out, "reads:   processed.labeled")
}

func TestStagesCommand_JSON(t *testing.T) {
	out, err := execute(t, "stages", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []StageInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 10)
	assert.Equal(t, "merge", resp.Data[3].Name)
	assert.Equal(t, []string{"processed.merged"}, resp.Data[3].Outputs)
	assert.NotEmpty(t, resp.Data[3].Description)
}
