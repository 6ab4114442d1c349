package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

func TestPlan_LinearInDeclarationOrder(t *testing.T) {
	stages := []Stage{
		{Name: "a", Outputs: []string{"x"}},
		{Name: "b", Inputs: []string{"x"}, Outputs: []string{"y"}},
		{Name: "c", Inputs: []string{"y"}, Outputs: []string{"z"}},
	}
	planned, err := Plan(stages)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, stageNames(planned))
}

func TestPlan_ReordersByDependency(t *testing.T) {
	stages := []Stage{
		{Name: "merge", Inputs: []string{"raw.a", "raw.b"}, Outputs: []string{"merged"}},
		{Name: "extract.b", Outputs: []string{"raw.b"}},
		{Name: "extract.a", Outputs: []string{"raw.a"}},
	}
	planned, err := Plan(stages)
	require.NoError(t, err)
	// Ties between the extracts keep declaration order.
	assert.Equal(t, []string{"extract.b", "extract.a", "merge"}, stageNames(planned))
}

func TestPlan_Cycle(t *testing.T) {
	stages := []Stage{
		{Name: "root", Outputs: []string{"r"}},
		{Name: "a", Inputs: []string{"r", "y"}, Outputs: []string{"x"}},
		{Name: "b", Inputs: []string{"x"}, Outputs: []string{"y"}},
	}
	_, err := Plan(stages)
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "a → b → a")
}

func TestPlan_SelfLoop(t *testing.T) {
	_, err := Plan([]Stage{{Name: "loop", Inputs: []string{"x"}, Outputs: []string{"x"}}})
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "loop → loop")
}

func TestPlan_DuplicateOutput(t *testing.T) {
	_, err := Plan([]Stage{
		{Name: "a", Outputs: []string{"x"}},
		{Name: "b", Outputs: []string{"x"}},
	})
	assert.Equal(t, ErrCodeDuplicateOutput, CodeOf(err))
}

func TestPlan_DuplicateName(t *testing.T) {
	_, err := Plan([]Stage{
		{Name: "a", Outputs: []string{"x"}},
		{Name: "a", Outputs: []string{"y"}},
	})
	assert.Equal(t, ErrCodeDuplicateOutput, CodeOf(err))
}

func TestPlan_UnresolvedInput(t *testing.T) {
	_, err := Plan([]Stage{{Name: "a", Inputs: []string{"ghost"}, Outputs: []string{"x"}}})
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnresolvedInput, CodeOf(err))
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestStageError_Format(t *testing.T) {
	err := newStageError(ErrCodeStageFailed, "merge", "stage failed", assert.AnError)
	assert.Equal(t, "STAGE_FAILED: stage failed (stage=merge): "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
}
