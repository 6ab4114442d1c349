package stages

// Stage names in execution order.
const (
	ExtractUsers           = "extract.users"
	ExtractRecommendations = "extract.recommendations"
	ExtractSearches        = "extract.searches"
	Merge                  = "merge"
	Features               = "features"
	Labels                 = "labels"
	Sampling               = "sampling"
	Cleaning               = "cleaning"
	Anonymize              = "anonymize"
	Export                 = "export"
)

// Snapshot names.
const (
	RawUsers           = "raw.users"
	RawRecommendations = "raw.recommendations"
	RawSearches        = "raw.searches"
	Merged             = "processed.merged"
	Featured           = "processed.featured"
	Labeled            = "processed.labeled"
	Balanced           = "processed.balanced"
	Cleaned            = "processed.cleaned"
	Final              = "processed.final"
)

// TrainSnapshot names the train partition of a dataset version.
func TrainSnapshot(version string) string {
	return "datasets.v" + version + ".train"
}

// TestSnapshot names the test partition of a dataset version.
func TestSnapshot(version string) string {
	return "datasets.v" + version + ".test"
}
