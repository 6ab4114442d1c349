// Package source loads the three raw record sets the pipeline starts from:
// users, recommendations and searches.
//
// Two extractors are provided. Files reads JSON lines exports from a
// directory; Postgres runs the extraction queries against the application
// database over a caller-owned *sql.DB. Both return datasets whose active
// columns are exactly dataset.UserColumns, dataset.RecommendationColumns and
// dataset.SearchColumns.
package source
