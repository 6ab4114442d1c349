package dataset

import "time"

// VectorDims is the fixed dimension order of user and item preference
// vectors.
var VectorDims = [VectorLen]string{
	"climate_pref",
	"culture_pref",
	"budget_level",
	"activity_level",
	"group_type",
	"urban_pref",
	"gastronomy_pref",
	"popularity_pref",
}

// VectorLen is the number of preference dimensions.
const VectorLen = 8

// Vector is a preference vector. A nil Vector is null.
type Vector []float64

// Dims holds one unpacked preference vector.
type Dims [VectorLen]Null[float64]

// Budget is a travel budget range as stored in onboarding profiles.
type Budget struct {
	Min Null[float64] `json:"min"`
	Max Null[float64] `json:"max"`
}

// Record is one interaction row. Identity is (UserID, RecommendationID)
// before anonymization and (UserHash, InteractionID) afterwards.
//
// Slots for columns a dataset does not carry stay null.
type Record struct {
	// Identity
	UserID           Null[string]
	RecommendationID Null[string]
	InteractionID    Null[string]
	UserHash         Null[string]

	// Recommendation lifecycle
	Status                   Null[string]
	CreatedAt                Null[time.Time]
	ViewedAt                 Null[time.Time]
	ClickedAt                Null[time.Time]
	BookedAt                 Null[time.Time]
	RejectedAt               Null[time.Time]
	UserRating               Null[float64]
	RecommendationScore      Null[float64]
	RecommendationConfidence Null[float64]
	ContextType              Null[string]

	// Item
	ItemVectorID        Null[string]
	ItemDestinationID   Null[string]
	ItemDestinationName Null[string]
	ItemDestinationType Null[string]
	ItemCountry         Null[string]
	ItemPopularityScore Null[float64]
	ItemBookingCount    Null[float64]
	ItemSearchCount     Null[float64]
	ItemVector          Vector

	// User profile
	UserVector          Vector
	PrimarySegment      Null[string]
	SegmentConfidence   Null[float64]
	DateOfBirth         Null[time.Time]
	Nationality         Null[string]
	UserCategory        Null[string]
	UserCreatedAt       Null[time.Time]
	TravelTypesList     []string
	GlobalBudgetRange   Null[Budget]
	BudgetFlexibility   Null[string]
	ActivityLevelEnum   Null[string]
	AccommodationLevel  Null[string]
	TravelWithChildren  Null[bool]
	PreferredCabinClass Null[string]
	UserSearchCount     Null[float64]
	UserBookingCount    Null[float64]
	UserAvgBookingValue Null[float64]

	// Contact details
	Email       Null[string]
	FirstName   Null[string]
	LastName    Null[string]
	PhoneNumber Null[string]

	// Most recent search
	SearchID          Null[string]
	SearchOrigin      Null[string]
	SearchDestination Null[string]
	DepartureDate     Null[time.Time]
	ReturnDate        Null[time.Time]
	SearchPassengers  Null[float64]
	SearchCabinClass  Null[string]
	SearchedAt        Null[time.Time]
	ResultsCount      Null[float64]

	// Engineered features
	UserDims             Dims
	ItemDims             Dims
	Timestamp            Null[time.Time]
	UserAge              Null[float64]
	Season               Null[string]
	IsWeekend            Null[bool]
	DaysUntilDeparture   Null[float64]
	BudgetMin            Null[float64]
	BudgetMax            Null[float64]
	TravelTypes          Null[string]
	DaysSinceLastSearch  Null[float64]
	DaysSinceLastBooking Null[float64]

	// Labels
	EngagementScore    Null[float64]
	BookingProbability Null[float64]
	InteractionType    Null[string]
	TimeToInteraction  Null[float64]

	// Anonymized attributes
	UserRegion   Null[string]
	UserAgeGroup Null[string]
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.ItemVector != nil {
		c.ItemVector = append(Vector(nil), r.ItemVector...)
	}
	if r.UserVector != nil {
		c.UserVector = append(Vector(nil), r.UserVector...)
	}
	if r.TravelTypesList != nil {
		c.TravelTypesList = append([]string(nil), r.TravelTypesList...)
	}
	return &c
}
