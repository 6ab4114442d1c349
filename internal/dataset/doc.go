// Package dataset provides the typed record model shared by every pipeline
// stage.
//
// A Record is a fixed struct with one nullable slot per attribute. The set of
// attributes a dataset currently carries is tracked separately as its active
// column list, so stages add and drop columns explicitly instead of probing
// for their presence. The Columns registry describes every attribute once
// (kind, grouping, accessors) and all generic passes iterate it.
//
// This package imports nothing internal. Every other internal package may
// import dataset.
//
// Key design constraints:
//   - Column names are snake_case and stable across snapshot versions
//   - Row order is significant and preserved by every operation here
//   - Canonical JSON is the only serialization used for digests
package dataset
