package anonymize

// OtherRegion is used for nationalities outside the region table.
const OtherRegion = "Other"

var countryToRegion = map[string]string{
	"FR": "Europe", "DE": "Europe", "IT": "Europe", "ES": "Europe", "UK": "Europe",
	"PT": "Europe", "NL": "Europe", "BE": "Europe", "CH": "Europe", "AT": "Europe",
	"GR": "Europe", "SE": "Europe", "NO": "Europe", "DK": "Europe", "FI": "Europe",

	"US": "North America", "CA": "North America", "MX": "North America",

	"CN": "Asia", "JP": "Asia", "KR": "Asia", "IN": "Asia", "TH": "Asia",
	"VN": "Asia", "ID": "Asia", "MY": "Asia", "SG": "Asia", "PH": "Asia",

	"AE": "Middle East", "SA": "Middle East", "IL": "Middle East", "TR": "Middle East",

	"AU": "Oceania", "NZ": "Oceania",

	"BR": "South America", "AR": "South America", "CL": "South America", "PE": "South America",

	"ZA": "Africa", "EG": "Africa", "MA": "Africa", "KE": "Africa",
}

// Region maps an ISO country code to its region.
func Region(country string) string {
	if r, ok := countryToRegion[country]; ok {
		return r
	}
	return OtherRegion
}

// ageBins are right-closed upper edges; the lowest edge is included.
var ageBins = []struct {
	hi    float64
	label string
}{
	{25, "18-25"},
	{35, "26-35"},
	{50, "36-50"},
	{65, "51-65"},
	{100, "65+"},
}

const minAgeEdge = 0

// AgeGroup returns the age bracket label for age. ok is false outside
// [0, 100].
func AgeGroup(age float64) (string, bool) {
	if age < minAgeEdge {
		return "", false
	}
	for _, b := range ageBins {
		if age <= b.hi {
			return b.label, true
		}
	}
	return "", false
}
