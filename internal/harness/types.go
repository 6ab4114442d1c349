package harness

import (
	"github.com/roach88/recset/internal/pipeline"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Executed lists the stages that ran, in order.
	Executed []string `json:"executed"`

	// Outputs holds every snapshot produced during the run, by name.
	Outputs pipeline.Datasets `json:"-"`

	// RunErr is the pipeline error, if the run failed.
	RunErr error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Executed: []string{},
		Outputs:  pipeline.Datasets{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
