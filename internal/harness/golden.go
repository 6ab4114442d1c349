package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/recset/internal/dataset"
)

// Projection captures the golden view of a scenario run.
// It is serialized as canonical JSON for deterministic comparison.
type Projection struct {
	ScenarioName string
	Snapshot     string
	Stages       []string
	Rows         []map[string]any
}

// Project builds the golden projection of result: the executed stages and
// the selected columns of one snapshot, in row order.
func Project(name string, spec GoldenSpec, result *Result) Projection {
	p := Projection{
		ScenarioName: name,
		Snapshot:     spec.Snapshot,
		Stages:       result.Executed,
		Rows:         []map[string]any{},
	}
	ds, ok := result.Outputs[spec.Snapshot]
	if !ok {
		return p
	}
	for _, r := range ds.Rows {
		row := make(map[string]any, len(spec.Columns))
		for _, name := range spec.Columns {
			if col, ok := dataset.Lookup(name); ok && ds.Has(name) {
				row[name] = col.Value(r)
			}
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}

// MarshalCanonical renders the projection as canonical JSON.
func (p Projection) MarshalCanonical() ([]byte, error) {
	rows := make([]any, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = r
	}
	return dataset.MarshalCanonical(map[string]any{
		"scenario_name": p.ScenarioName,
		"snapshot":      p.Snapshot,
		"stages":        p.Stages,
		"rows":          rows,
	})
}

// RunWithGolden executes a scenario and compares its projection against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario has no golden projection or execution
// fails. Test failure (via goldie) occurs if the projection differs.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if scenario.Golden == nil {
		return result, fmt.Errorf("scenario %s has no golden projection", scenario.Name)
	}
	return result, AssertGolden(t, scenario.Name, Project(scenario.Name, *scenario.Golden, result))
}

// AssertGolden compares a projection against its golden file.
func AssertGolden(t *testing.T, name string, p Projection) error {
	t.Helper()

	data, err := p.MarshalCanonical()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
