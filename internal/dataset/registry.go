package dataset

import (
	"fmt"
	"slices"
	"time"
)

// Column names referenced by stages.
const (
	ColUserID                   = "user_id"
	ColRecommendationID         = "recommendation_id"
	ColInteractionID            = "interaction_id"
	ColUserHash                 = "user_hash"
	ColStatus                   = "status"
	ColCreatedAt                = "created_at"
	ColViewedAt                 = "viewed_at"
	ColClickedAt                = "clicked_at"
	ColBookedAt                 = "booked_at"
	ColRejectedAt               = "rejected_at"
	ColUserRating               = "user_rating"
	ColRecommendationScore      = "recommendation_score"
	ColRecommendationConfidence = "recommendation_confidence"
	ColContextType              = "context_type"
	ColItemVectorID             = "item_vector_id"
	ColItemDestinationID        = "item_destination_id"
	ColItemDestinationName      = "item_destination_name"
	ColItemDestinationType      = "item_destination_type"
	ColItemCountry              = "item_country"
	ColItemPopularityScore      = "item_popularity_score"
	ColItemBookingCount         = "item_booking_count"
	ColItemSearchCount          = "item_search_count"
	ColItemVector               = "item_vector"
	ColUserVector               = "user_vector"
	ColPrimarySegment           = "primary_segment"
	ColSegmentConfidence        = "segment_confidence"
	ColDateOfBirth              = "date_of_birth"
	ColNationality              = "user_nationality"
	ColUserCategory             = "user_category"
	ColUserCreatedAt            = "user_created_at"
	ColTravelTypesList          = "travel_types_list"
	ColGlobalBudgetRange        = "global_budget_range"
	ColBudgetFlexibility        = "budget_flexibility"
	ColActivityLevelEnum        = "activity_level_enum"
	ColAccommodationLevel       = "accommodation_level"
	ColTravelWithChildren       = "travel_with_children"
	ColPreferredCabinClass      = "preferred_cabin_class"
	ColUserSearchCount          = "user_search_count"
	ColUserBookingCount         = "user_booking_count"
	ColUserAvgBookingValue      = "user_avg_booking_value"
	ColEmail                    = "email"
	ColFirstName                = "first_name"
	ColLastName                 = "last_name"
	ColPhoneNumber              = "phone_number"
	ColSearchID                 = "search_id"
	ColSearchOrigin             = "search_origin"
	ColSearchDestination        = "search_destination"
	ColDepartureDate            = "departure_date"
	ColReturnDate               = "return_date"
	ColSearchPassengers         = "search_passengers"
	ColSearchCabinClass         = "search_cabin_class"
	ColSearchedAt               = "searched_at"
	ColResultsCount             = "results_count"
	ColTimestamp                = "timestamp"
	ColUserAge                  = "user_age"
	ColSeason                   = "season"
	ColIsWeekend                = "is_weekend"
	ColDaysUntilDeparture       = "days_until_departure"
	ColBudgetMin                = "budget_min"
	ColBudgetMax                = "budget_max"
	ColTravelTypes              = "travel_types"
	ColDaysSinceLastSearch      = "days_since_last_search"
	ColDaysSinceLastBooking     = "days_since_last_booking"
	ColEngagementScore          = "engagement_score"
	ColBookingProbability       = "booking_probability"
	ColInteractionType          = "interaction_type"
	ColTimeToInteraction        = "time_to_interaction"
	ColUserRegion               = "user_region"
	ColUserAgeGroup             = "user_age_group"
)

const (
	ident = GroupIdentifier
	pii   = GroupPII
	cat   = GroupCategorical
	req   = GroupRequired
	label = GroupLabel
)

// Columns is the record schema in canonical order.
var Columns = buildColumns()

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c.Name] = i
	}
	return idx
}()

func buildColumns() []Column {
	cols := []Column{
		stringCol(ColUserID, ident|pii, func(r *Record) *Null[string] { return &r.UserID }),
		stringCol(ColRecommendationID, ident|pii, func(r *Record) *Null[string] { return &r.RecommendationID }),
		stringCol(ColInteractionID, ident, func(r *Record) *Null[string] { return &r.InteractionID }),
		stringCol(ColUserHash, ident|req, func(r *Record) *Null[string] { return &r.UserHash }),

		stringCol(ColStatus, cat, func(r *Record) *Null[string] { return &r.Status }),
		timeCol(ColCreatedAt, 0, func(r *Record) *Null[time.Time] { return &r.CreatedAt }),
		timeCol(ColViewedAt, 0, func(r *Record) *Null[time.Time] { return &r.ViewedAt }),
		timeCol(ColClickedAt, 0, func(r *Record) *Null[time.Time] { return &r.ClickedAt }),
		timeCol(ColBookedAt, 0, func(r *Record) *Null[time.Time] { return &r.BookedAt }),
		timeCol(ColRejectedAt, 0, func(r *Record) *Null[time.Time] { return &r.RejectedAt }),
		numberCol(ColUserRating, 0, func(r *Record) *Null[float64] { return &r.UserRating }),
		numberCol(ColRecommendationScore, req, func(r *Record) *Null[float64] { return &r.RecommendationScore }),
		numberCol(ColRecommendationConfidence, 0, func(r *Record) *Null[float64] { return &r.RecommendationConfidence }),
		stringCol(ColContextType, cat, func(r *Record) *Null[string] { return &r.ContextType }),

		stringCol(ColItemVectorID, ident, func(r *Record) *Null[string] { return &r.ItemVectorID }),
		stringCol(ColItemDestinationID, ident|req, func(r *Record) *Null[string] { return &r.ItemDestinationID }),
		stringCol(ColItemDestinationName, cat, func(r *Record) *Null[string] { return &r.ItemDestinationName }),
		stringCol(ColItemDestinationType, cat, func(r *Record) *Null[string] { return &r.ItemDestinationType }),
		stringCol(ColItemCountry, cat, func(r *Record) *Null[string] { return &r.ItemCountry }),
		numberCol(ColItemPopularityScore, 0, func(r *Record) *Null[float64] { return &r.ItemPopularityScore }),
		numberCol(ColItemBookingCount, 0, func(r *Record) *Null[float64] { return &r.ItemBookingCount }),
		numberCol(ColItemSearchCount, 0, func(r *Record) *Null[float64] { return &r.ItemSearchCount }),
		vectorCol(ColItemVector, func(r *Record) *Vector { return &r.ItemVector }),

		vectorCol(ColUserVector, func(r *Record) *Vector { return &r.UserVector }),
		stringCol(ColPrimarySegment, cat, func(r *Record) *Null[string] { return &r.PrimarySegment }),
		numberCol(ColSegmentConfidence, 0, func(r *Record) *Null[float64] { return &r.SegmentConfidence }),
		timeCol(ColDateOfBirth, pii, func(r *Record) *Null[time.Time] { return &r.DateOfBirth }),
		stringCol(ColNationality, cat, func(r *Record) *Null[string] { return &r.Nationality }),
		stringCol(ColUserCategory, cat, func(r *Record) *Null[string] { return &r.UserCategory }),
		timeCol(ColUserCreatedAt, 0, func(r *Record) *Null[time.Time] { return &r.UserCreatedAt }),
		{Name: ColTravelTypesList, Kind: KindTags, tags: func(r *Record) *[]string { return &r.TravelTypesList }},
		{Name: ColGlobalBudgetRange, Kind: KindBudget, bud: func(r *Record) *Null[Budget] { return &r.GlobalBudgetRange }},
		stringCol(ColBudgetFlexibility, cat, func(r *Record) *Null[string] { return &r.BudgetFlexibility }),
		stringCol(ColActivityLevelEnum, cat, func(r *Record) *Null[string] { return &r.ActivityLevelEnum }),
		stringCol(ColAccommodationLevel, cat, func(r *Record) *Null[string] { return &r.AccommodationLevel }),
		boolCol(ColTravelWithChildren, 0, func(r *Record) *Null[bool] { return &r.TravelWithChildren }),
		stringCol(ColPreferredCabinClass, cat, func(r *Record) *Null[string] { return &r.PreferredCabinClass }),
		numberCol(ColUserSearchCount, 0, func(r *Record) *Null[float64] { return &r.UserSearchCount }),
		numberCol(ColUserBookingCount, 0, func(r *Record) *Null[float64] { return &r.UserBookingCount }),
		numberCol(ColUserAvgBookingValue, 0, func(r *Record) *Null[float64] { return &r.UserAvgBookingValue }),

		stringCol(ColEmail, pii, func(r *Record) *Null[string] { return &r.Email }),
		stringCol(ColFirstName, pii, func(r *Record) *Null[string] { return &r.FirstName }),
		stringCol(ColLastName, pii, func(r *Record) *Null[string] { return &r.LastName }),
		stringCol(ColPhoneNumber, pii, func(r *Record) *Null[string] { return &r.PhoneNumber }),

		stringCol(ColSearchID, ident, func(r *Record) *Null[string] { return &r.SearchID }),
		stringCol(ColSearchOrigin, cat, func(r *Record) *Null[string] { return &r.SearchOrigin }),
		stringCol(ColSearchDestination, cat, func(r *Record) *Null[string] { return &r.SearchDestination }),
		timeCol(ColDepartureDate, 0, func(r *Record) *Null[time.Time] { return &r.DepartureDate }),
		timeCol(ColReturnDate, 0, func(r *Record) *Null[time.Time] { return &r.ReturnDate }),
		numberCol(ColSearchPassengers, 0, func(r *Record) *Null[float64] { return &r.SearchPassengers }),
		stringCol(ColSearchCabinClass, cat, func(r *Record) *Null[string] { return &r.SearchCabinClass }),
		timeCol(ColSearchedAt, 0, func(r *Record) *Null[time.Time] { return &r.SearchedAt }),
		numberCol(ColResultsCount, 0, func(r *Record) *Null[float64] { return &r.ResultsCount }),
	}

	cols = append(cols, dimCols("user", func(r *Record) *Dims { return &r.UserDims })...)
	cols = append(cols, dimCols("item", func(r *Record) *Dims { return &r.ItemDims })...)

	cols = append(cols,
		timeCol(ColTimestamp, 0, func(r *Record) *Null[time.Time] { return &r.Timestamp }),
		numberCol(ColUserAge, 0, func(r *Record) *Null[float64] { return &r.UserAge }),
		stringCol(ColSeason, cat, func(r *Record) *Null[string] { return &r.Season }),
		boolCol(ColIsWeekend, 0, func(r *Record) *Null[bool] { return &r.IsWeekend }),
		numberCol(ColDaysUntilDeparture, 0, func(r *Record) *Null[float64] { return &r.DaysUntilDeparture }),
		numberCol(ColBudgetMin, 0, func(r *Record) *Null[float64] { return &r.BudgetMin }),
		numberCol(ColBudgetMax, 0, func(r *Record) *Null[float64] { return &r.BudgetMax }),
		stringCol(ColTravelTypes, cat, func(r *Record) *Null[string] { return &r.TravelTypes }),
		numberCol(ColDaysSinceLastSearch, 0, func(r *Record) *Null[float64] { return &r.DaysSinceLastSearch }),
		numberCol(ColDaysSinceLastBooking, 0, func(r *Record) *Null[float64] { return &r.DaysSinceLastBooking }),

		numberCol(ColEngagementScore, label|req, func(r *Record) *Null[float64] { return &r.EngagementScore }),
		numberCol(ColBookingProbability, label|req, func(r *Record) *Null[float64] { return &r.BookingProbability }),
		stringCol(ColInteractionType, label|cat, func(r *Record) *Null[string] { return &r.InteractionType }),
		numberCol(ColTimeToInteraction, 0, func(r *Record) *Null[float64] { return &r.TimeToInteraction }),

		stringCol(ColUserRegion, cat, func(r *Record) *Null[string] { return &r.UserRegion }),
		stringCol(ColUserAgeGroup, cat, func(r *Record) *Null[string] { return &r.UserAgeGroup }),
	)

	// The first four user vector dimensions are required at export.
	for _, dim := range VectorDims[:4] {
		for i := range cols {
			if cols[i].Name == "user_"+dim {
				cols[i].Group |= GroupRequired
			}
		}
	}
	return cols
}

// Lookup returns the column with the given name.
func Lookup(name string) (Column, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return Columns[i], true
}

// MustLookup returns the column with the given name. It panics on unknown
// names; use it only with the Col* constants.
func MustLookup(name string) Column {
	c, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("dataset: unknown column %q", name))
	}
	return c
}

// Names returns the names of every column in g, in canonical order.
func Names(g Group) []string {
	var out []string
	for _, c := range Columns {
		if c.Group.Has(g) {
			out = append(out, c.Name)
		}
	}
	return out
}

// DimNames returns the unpacked column names for a vector prefix ("user" or
// "item").
func DimNames(prefix string) []string {
	out := make([]string, VectorLen)
	for i, dim := range VectorDims {
		out[i] = prefix + "_" + dim
	}
	return out
}

// RequiredColumns lists the columns that must be present and non-null in an
// exported dataset.
func RequiredColumns() []string {
	return Names(GroupRequired)
}

// PIIColumns lists the columns removed by anonymization.
func PIIColumns() []string {
	return Names(GroupPII)
}

// CriticalColumns lists the columns whose null values cause cleaning to drop
// a row.
var CriticalColumns = []string{
	ColUserID,
	"user_climate_pref",
	ColRecommendationScore,
	ColEngagementScore,
}

// Raw column sets as delivered by the upstream extracts.
var (
	RecommendationColumns = []string{
		ColRecommendationID, ColUserID, ColItemVectorID, ColItemDestinationID,
		ColItemDestinationName, ColItemDestinationType, ColRecommendationScore,
		ColRecommendationConfidence, ColContextType, ColStatus, ColViewedAt,
		ColClickedAt, ColBookedAt, ColRejectedAt, ColUserRating, ColCreatedAt,
		ColUserVector, ColPrimarySegment, ColItemVector, ColItemCountry,
		ColItemPopularityScore, ColItemBookingCount, ColItemSearchCount,
	}

	UserColumns = []string{
		ColUserID, ColDateOfBirth, ColNationality, ColUserCategory, ColUserCreatedAt,
		ColEmail, ColFirstName, ColLastName, ColPhoneNumber,
		ColUserVector, ColPrimarySegment, ColSegmentConfidence,
		ColTravelTypesList, ColGlobalBudgetRange, ColBudgetFlexibility,
		ColActivityLevelEnum, ColAccommodationLevel, ColTravelWithChildren,
		ColPreferredCabinClass, ColUserSearchCount, ColUserBookingCount,
		ColUserAvgBookingValue,
	}

	SearchColumns = []string{
		ColSearchID, ColUserID, ColSearchOrigin, ColSearchDestination,
		ColDepartureDate, ColReturnDate, ColSearchPassengers, ColSearchCabinClass,
		ColSearchedAt, ColResultsCount,
	}
)

// CanonicalOrder sorts names by registry position. Unknown names sort last,
// in their given order.
func CanonicalOrder(names []string) []string {
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int {
		ia, oka := columnIndex[a]
		ib, okb := columnIndex[b]
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		}
		return 0
	})
	return out
}
