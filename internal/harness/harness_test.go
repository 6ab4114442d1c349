package harness

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/pipeline"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios(t *testing.T) {
	files, err := Discover(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		s, err := LoadScenario(file)
		require.NoError(t, err, file)
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGolden_ThreeRowLabels(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "three_row_labels"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_IsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "anonymized_balance")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := dataset.Digest(first.Outputs["processed.final"])
	require.NoError(t, err)
	b, err := dataset.Digest(second.Outputs["processed.final"])
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	s := loadTestScenario(t, "three_row_labels")
	s.Assertions = []Assertion{
		{Type: AssertRowCount, Snapshot: "processed.labeled", Count: 4},
		{Type: AssertColumnValues, Snapshot: "processed.labeled", Column: "engagement_score", Values: []any{5, 1, 1}},
		{Type: AssertColumnsAbsent, Snapshot: "processed.labeled", Columns: []string{"user_id"}},
		{Type: AssertRowCount, Snapshot: "processed.final", Count: 3},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Expected: 4 rows")
	assert.Contains(t, result.Errors[1], "engagement_score")
	assert.Contains(t, result.Errors[2], "[user_id] present")
	assert.Contains(t, result.Errors[3], "snapshot not produced")
}

func TestRun_UnexpectedFailureFails(t *testing.T) {
	s := loadTestScenario(t, "unknown_until")
	s.Assertions = []Assertion{{Type: AssertStageOrder, Stages: []string{"merge"}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, pipeline.ErrCodeUnknownStage, pipeline.CodeOf(result.RunErr))
	assert.Contains(t, result.Errors[0], "pipeline failed")
}

func TestRun_BadInputRow(t *testing.T) {
	s := loadTestScenario(t, "three_row_labels")
	s.Input.Recommendations[0]["recommendation_score"] = "high"

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.recommendations[0]")
}

func TestRun_BadReferenceTime(t *testing.T) {
	s := loadTestScenario(t, "three_row_labels")
	s.Params.ReferenceTime = "yesterday"

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference_time")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertRowCount,
		Snapshot: "processed.labeled",
		Expected: "3 rows",
		Actual:   "2 rows",
		Executed: []string{"merge", "labels"},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: row_count (processed.labeled)")
	assert.Contains(t, msg, "[2] labels")

	var target *AssertionError
	assert.True(t, errors.As(error(err), &target))
}

func TestStageOrder_AllowsGaps(t *testing.T) {
	result := NewResult()
	result.Executed = []string{"a", "b", "c", "d"}

	assert.NoError(t, assertStageOrder(result, Assertion{Type: AssertStageOrder, Stages: []string{"a", "c"}}))
	assert.Error(t, assertStageOrder(result, Assertion{Type: AssertStageOrder, Stages: []string{"c", "a"}}))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []any{1.0, "x", nil, map[string]any{"min": 2.0}},
		normalize([]any{1, "x", nil, map[string]any{"min": int64(2)}}))
}
