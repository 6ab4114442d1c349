// Package harness runs recset pipeline scenarios.
//
// A scenario feeds a handful of raw rows through the real stage graph
// against a fresh snapshot store, then checks the committed snapshots.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	params:
//	  seed: 42
//	  until: labels
//	input:
//	  users:
//	    - { user_id: u1, user_nationality: FR }
//	  recommendations:
//	    - { recommendation_id: r1, user_id: u1, booked_at: "2024-05-01T10:30:00Z" }
//	  searches: []
//	assertions:
//	  - type: column_values
//	    snapshot: processed.labeled
//	    column: engagement_score
//	    values: [5]
//	golden:
//	  snapshot: processed.labeled
//	  columns: [recommendation_id, engagement_score]
//
// Input rows use raw column names and are decoded the same way the JSON
// lines loader decodes them. Unknown keys are rejected.
//
// # Assertion Types
//
//   - stage_order: the listed stages executed, in that order
//   - row_count: a snapshot holds exactly count rows
//   - column_values: a snapshot column holds exactly values, in row order
//   - columns_absent: none of the listed columns is active in a snapshot
//   - columns_present: every listed column is active in a snapshot
//   - run_error: the run failed with an error containing contains
//
// # Golden Files
//
// When a scenario names a golden projection, RunWithGolden compares the
// executed stages and the projected rows, as canonical JSON, against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
