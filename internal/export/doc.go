// Package export splits the final dataset into train and test partitions
// and writes the published artifacts: Parquet files, a CSV sample, a
// metadata document and an HTML quality report with distribution plots.
//
// Splitting and validation happen before anything is written. Artifacts
// are written only for partitions that passed validation.
package export
