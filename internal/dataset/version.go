package dataset

// Version constants for the record schema and the pipeline.
const (
	// SchemaVersion is the record schema version. Bump when a column is
	// added, removed or changes kind.
	SchemaVersion = "1.0"

	// PipelineVersion is the recset pipeline version.
	PipelineVersion = "0.1.0"
)

// SourceTables lists the upstream tables the raw record sets are drawn from.
var SourceTables = []string{
	"users",
	"user_vectors",
	"travel_onboarding_profiles",
	"user_preferences",
	"recommendations",
	"item_vectors",
	"search_history",
	"booking_data",
}
