package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recset/internal/dataset"
)

// Scenario defines one pipeline scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Params override the run parameters. Unset fields keep DefaultParams.
	Params Params `yaml:"params"`

	// Input holds the raw record sets.
	Input Input `yaml:"input"`

	// Assertions validate the run and its snapshots.
	Assertions []Assertion `yaml:"assertions"`

	// Golden, if set, selects the projection compared by RunWithGolden.
	Golden *GoldenSpec `yaml:"golden,omitempty"`
}

// Params are the run parameters a scenario may set.
type Params struct {
	Version         string  `yaml:"version" json:"version"`
	WindowDays      int     `yaml:"window_days" json:"window_days"`
	ReferenceTime   string  `yaml:"reference_time" json:"reference_time"`
	NegativeRatio   float64 `yaml:"negative_ratio" json:"negative_ratio"`
	TestSize        float64 `yaml:"test_size" json:"test_size"`
	Seed            int64   `yaml:"seed" json:"seed"`
	RareThreshold   int     `yaml:"rare_threshold" json:"rare_threshold"`
	Salt            string  `yaml:"salt" json:"salt"`
	ClipVectorsOnly bool    `yaml:"clip_vectors_only" json:"clip_vectors_only"`

	// Until stops the run after the named stage.
	Until string `yaml:"until" json:"until"`
}

// DefaultParams mirrors the built-in configuration with a fixed reference
// time.
func DefaultParams() Params {
	return Params{
		Version:       "1.0",
		WindowDays:    90,
		ReferenceTime: "2024-06-01T12:00:00Z",
		NegativeRatio: 2.0,
		TestSize:      0.2,
		Seed:          42,
		RareThreshold: 10,
	}
}

// Row is one raw input row keyed by column name.
type Row map[string]any

// Input holds the three raw record sets.
type Input struct {
	Users           []Row `yaml:"users"`
	Recommendations []Row `yaml:"recommendations"`
	Searches        []Row `yaml:"searches"`
}

// Assertion validates the run or one snapshot.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Snapshot names the snapshot checked (row_count, column_values,
	// columns_absent, columns_present).
	Snapshot string `yaml:"snapshot,omitempty"`

	// Column is the column checked by column_values.
	Column string `yaml:"column,omitempty"`

	// Values are the expected column values in row order. null matches a
	// null slot.
	Values []any `yaml:"values,omitempty"`

	// Columns are checked by columns_absent and columns_present.
	Columns []string `yaml:"columns,omitempty"`

	// Count is the expected row count.
	Count int `yaml:"count,omitempty"`

	// Stages is the expected execution order (stage_order).
	Stages []string `yaml:"stages,omitempty"`

	// Contains is a substring of the expected run error (run_error).
	Contains string `yaml:"contains,omitempty"`
}

// GoldenSpec selects the snapshot columns captured in a golden file.
type GoldenSpec struct {
	Snapshot string   `yaml:"snapshot"`
	Columns  []string `yaml:"columns"`
}

// Assertion type constants.
const (
	AssertStageOrder     = "stage_order"
	AssertRowCount       = "row_count"
	AssertColumnValues   = "column_values"
	AssertColumnsAbsent  = "columns_absent"
	AssertColumnsPresent = "columns_present"
	AssertRunError       = "run_error"
)

var assertionTypes = []string{
	AssertStageOrder, AssertRowCount, AssertColumnValues,
	AssertColumnsAbsent, AssertColumnsPresent, AssertRunError,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Params: DefaultParams()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Discover returns the scenario files (*.yaml, *.yml) in dir, sorted.
func Discover(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	if len(out) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("scenario directory: %w", err)
		}
	}
	slices.Sort(out)
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Input.Recommendations) == 0 {
		return fmt.Errorf("input.recommendations must be non-empty")
	}
	if len(s.Assertions) == 0 && s.Golden == nil {
		return fmt.Errorf("at least one assertion or a golden projection is required")
	}

	sets := []struct {
		name    string
		rows    []Row
		columns []string
	}{
		{"users", s.Input.Users, dataset.UserColumns},
		{"recommendations", s.Input.Recommendations, dataset.RecommendationColumns},
		{"searches", s.Input.Searches, dataset.SearchColumns},
	}
	for _, set := range sets {
		for i, row := range set.rows {
			for key := range row {
				if !slices.Contains(set.columns, key) {
					return fmt.Errorf("input.%s[%d]: unknown column %q", set.name, i, key)
				}
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	if s.Golden != nil {
		if s.Golden.Snapshot == "" || len(s.Golden.Columns) == 0 {
			return fmt.Errorf("golden: snapshot and columns are required")
		}
		if err := knownColumns(s.Golden.Columns); err != nil {
			return fmt.Errorf("golden: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	if !slices.Contains(assertionTypes, a.Type) {
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	switch a.Type {
	case AssertStageOrder:
		if len(a.Stages) == 0 {
			return fmt.Errorf("%s requires stages", a.Type)
		}
	case AssertRunError:
		if a.Contains == "" {
			return fmt.Errorf("%s requires contains", a.Type)
		}
	default:
		if a.Snapshot == "" {
			return fmt.Errorf("%s requires snapshot", a.Type)
		}
	}
	switch a.Type {
	case AssertColumnValues:
		if a.Column == "" {
			return fmt.Errorf("%s requires column", a.Type)
		}
		return knownColumns([]string{a.Column})
	case AssertColumnsAbsent, AssertColumnsPresent:
		if len(a.Columns) == 0 {
			return fmt.Errorf("%s requires columns", a.Type)
		}
		return knownColumns(a.Columns)
	}
	return nil
}

func knownColumns(names []string) error {
	for _, name := range names {
		if _, ok := dataset.Lookup(name); !ok {
			return fmt.Errorf("unknown column %q", name)
		}
	}
	return nil
}
