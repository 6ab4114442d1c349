package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/recset/internal/dataset"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Snapshot string   // Snapshot checked, if any
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Executed []string // Stages that ran, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Snapshot != "" {
		fmt.Fprintf(&buf, " (%s)", e.Snapshot)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nExecuted stages:\n")
	for i, name := range e.Executed {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, name)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages. A failed run is itself a failure unless a run_error
// assertion expects it.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	expectsFailure := slices.ContainsFunc(assertions, func(a Assertion) bool { return a.Type == AssertRunError })
	if result.RunErr != nil && !expectsFailure {
		errs = append(errs, fmt.Sprintf("pipeline failed: %v", result.RunErr))
	}

	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertStageOrder:
			err = assertStageOrder(result, a)
		case AssertRowCount:
			err = assertRowCount(result, a)
		case AssertColumnValues:
			err = assertColumnValues(result, a)
		case AssertColumnsAbsent:
			err = assertColumns(result, a, false)
		case AssertColumnsPresent:
			err = assertColumns(result, a, true)
		case AssertRunError:
			err = assertRunError(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertStageOrder checks that the listed stages executed in that order.
// Other stages may run in between.
func assertStageOrder(result *Result, a Assertion) error {
	next := 0
	for _, name := range result.Executed {
		if next < len(a.Stages) && name == a.Stages[next] {
			next++
		}
	}
	if next == len(a.Stages) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("stages in order %v", a.Stages),
		Actual:   fmt.Sprintf("stage %q not found after %v", a.Stages[next], a.Stages[:next]),
		Executed: result.Executed,
	}
}

func assertRowCount(result *Result, a Assertion) error {
	ds, err := snapshot(result, a)
	if err != nil {
		return err
	}
	if ds.Len() == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Snapshot: a.Snapshot,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", ds.Len()),
		Executed: result.Executed,
	}
}

func assertColumnValues(result *Result, a Assertion) error {
	ds, err := snapshot(result, a)
	if err != nil {
		return err
	}
	col := dataset.MustLookup(a.Column)
	if !ds.Has(a.Column) {
		return &AssertionError{
			Type:     a.Type,
			Snapshot: a.Snapshot,
			Expected: fmt.Sprintf("column %s", a.Column),
			Actual:   "column not active",
			Executed: result.Executed,
		}
	}

	actual := make([]any, ds.Len())
	for i, r := range ds.Rows {
		actual[i] = col.Value(r)
	}
	expected := make([]any, len(a.Values))
	for i, v := range a.Values {
		expected[i] = normalize(v)
	}
	if reflect.DeepEqual(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Snapshot: a.Snapshot,
		Expected: fmt.Sprintf("%s = %v", a.Column, expected),
		Actual:   fmt.Sprintf("%s = %v", a.Column, actual),
		Executed: result.Executed,
	}
}

func assertColumns(result *Result, a Assertion, present bool) error {
	ds, err := snapshot(result, a)
	if err != nil {
		return err
	}
	var wrong []string
	for _, name := range a.Columns {
		if ds.Has(name) != present {
			wrong = append(wrong, name)
		}
	}
	if len(wrong) == 0 {
		return nil
	}
	want, got := "absent", "present"
	if present {
		want, got = got, want
	}
	return &AssertionError{
		Type:     a.Type,
		Snapshot: a.Snapshot,
		Expected: fmt.Sprintf("columns %v %s", a.Columns, want),
		Actual:   fmt.Sprintf("%v %s", wrong, got),
		Executed: result.Executed,
	}
}

func assertRunError(result *Result, a Assertion) error {
	if result.RunErr != nil && strings.Contains(result.RunErr.Error(), a.Contains) {
		return nil
	}
	actual := "run succeeded"
	if result.RunErr != nil {
		actual = result.RunErr.Error()
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("run error containing %q", a.Contains),
		Actual:   actual,
		Executed: result.Executed,
	}
}

func snapshot(result *Result, a Assertion) (*dataset.Dataset, error) {
	ds, ok := result.Outputs[a.Snapshot]
	if !ok {
		return nil, &AssertionError{
			Type:     a.Type,
			Snapshot: a.Snapshot,
			Expected: "snapshot produced",
			Actual:   "snapshot not produced",
			Executed: result.Executed,
		}
	}
	return ds, nil
}

// normalize converts YAML scalars to the types Column.Value returns:
// every number becomes float64.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalize(elem)
		}
		return out
	default:
		return val
	}
}
