package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/roach88/recset/internal/dataset"
)

// Each query returns one JSON object per row whose keys are record column
// names, so decoding shares the lenient path used for JSON lines files.

const recommendationsQuery = `
SELECT row_to_json(q)::text FROM (
	SELECT
		r.id AS recommendation_id,
		r."userId" AS user_id,
		r."itemVectorId" AS item_vector_id,
		r."destinationId" AS item_destination_id,
		r."destinationName" AS item_destination_name,
		r."destinationType" AS item_destination_type,
		r.score AS recommendation_score,
		r.confidence AS recommendation_confidence,
		r."contextType" AS context_type,
		r.status AS status,
		r."viewedAt" AS viewed_at,
		r."clickedAt" AS clicked_at,
		r."bookedAt" AS booked_at,
		r."rejectedAt" AS rejected_at,
		r."userRating" AS user_rating,
		r."createdAt" AS created_at,
		uv.vector AS user_vector,
		uv."primarySegment" AS primary_segment,
		iv.vector AS item_vector,
		iv.country AS item_country,
		iv."popularityScore" AS item_popularity_score,
		iv."bookingCount" AS item_booking_count,
		iv."searchCount" AS item_search_count
	FROM recommendations r
	INNER JOIN user_vectors uv ON uv."userId" = r."userId"
	LEFT JOIN item_vectors iv ON iv.id = r."itemVectorId"
	WHERE r."createdAt" >= NOW() - make_interval(days => $1)
	ORDER BY r."createdAt", r.id
) q`

const usersQuery = `
SELECT row_to_json(q)::text FROM (
	SELECT
		u.id AS user_id,
		u."dateOfBirth" AS date_of_birth,
		u.nationality AS user_nationality,
		u."userCategory" AS user_category,
		u."createdAt" AS user_created_at,
		u.email AS email,
		u."firstName" AS first_name,
		u."lastName" AS last_name,
		u."phoneNumber" AS phone_number,
		uv.vector AS user_vector,
		uv."primarySegment" AS primary_segment,
		uv."segmentConfidence" AS segment_confidence,
		top."travelTypes" AS travel_types_list,
		top."globalBudgetRange" AS global_budget_range,
		top."budgetFlexibility" AS budget_flexibility,
		top."activityLevel" AS activity_level_enum,
		top."accommodationLevel" AS accommodation_level,
		top."travelWithChildren" AS travel_with_children,
		up."preferredCabinClass" AS preferred_cabin_class,
		COUNT(DISTINCT sh.id) AS user_search_count,
		COUNT(DISTINCT CASE WHEN bd.status IN ('CONFIRMED', 'COMPLETED') THEN bd.id END) AS user_booking_count,
		AVG(CASE WHEN bd.status IN ('CONFIRMED', 'COMPLETED') THEN bd."totalAmount" END) AS user_avg_booking_value
	FROM users u
	LEFT JOIN user_vectors uv ON uv."userId" = u.id
	LEFT JOIN travel_onboarding_profiles top ON top."userId" = u.id
	LEFT JOIN user_preferences up ON up."userId" = u.id
	LEFT JOIN search_history sh ON sh."userId" = u.id
		AND sh."searchedAt" >= NOW() - make_interval(days => $1)
	LEFT JOIN booking_data bd ON bd."userId" = u.id
	WHERE u."onboardingCompleted" = TRUE
		AND uv.id IS NOT NULL
	GROUP BY u.id, uv.id, top.id, up.id
	ORDER BY u.id
) q`

const searchesQuery = `
SELECT row_to_json(q)::text FROM (
	SELECT
		sh.id AS search_id,
		sh."userId" AS user_id,
		sh.origin AS search_origin,
		sh.destination AS search_destination,
		sh."departureDate" AS departure_date,
		sh."returnDate" AS return_date,
		sh.passengers AS search_passengers,
		sh."cabinClass" AS search_cabin_class,
		sh."searchedAt" AS searched_at,
		sh."resultsCount" AS results_count
	FROM search_history sh
	WHERE sh."searchedAt" >= NOW() - make_interval(days => $1)
		AND sh."userId" IS NOT NULL
	ORDER BY sh."userId", sh."searchedAt" DESC, sh.id
) q`

// OpenPostgres opens and pings a PostgreSQL connection. The caller owns the
// returned handle and must close it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Postgres extracts raw record sets from the application database. Only
// rows inside the last WindowDays days are read.
type Postgres struct {
	DB         *sql.DB
	WindowDays int
	Logger     *slog.Logger
}

// Users extracts onboarded users that have a preference vector.
func (p Postgres) Users(ctx context.Context) (*dataset.Dataset, error) {
	return p.query(ctx, "users", usersQuery, dataset.UserColumns)
}

// Recommendations extracts recommendations created inside the window.
func (p Postgres) Recommendations(ctx context.Context) (*dataset.Dataset, error) {
	return p.query(ctx, "recommendations", recommendationsQuery, dataset.RecommendationColumns)
}

// Searches extracts searches inside the window and keeps the most recent
// one per user.
func (p Postgres) Searches(ctx context.Context) (*dataset.Dataset, error) {
	all, err := p.query(ctx, "searches", searchesQuery, dataset.SearchColumns)
	if err != nil {
		return nil, err
	}
	recent := MostRecentSearches(all)
	p.logger().Info("keeping most recent search per user", "searches", all.Len(), "kept", recent.Len())
	return recent, nil
}

func (p Postgres) query(ctx context.Context, what, query string, columns []string) (*dataset.Dataset, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("extract %s: no database handle", what)
	}
	rows, err := p.DB.QueryContext(ctx, query, p.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", what, err)
	}
	defer rows.Close()

	ds, err := dataset.New(columns...)
	if err != nil {
		return nil, err
	}
	badTimes := 0
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("extract %s: scan: %w", what, err)
		}
		r, bad, err := dataset.DecodeRow(columns, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", what, err)
		}
		badTimes += bad
		ds.Append(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", what, err)
	}

	if badTimes > 0 {
		p.logger().Warn("unparseable timestamps set to null", "table", what, "count", badTimes)
	}
	p.logger().Info("extracted raw records", "table", what, "rows", ds.Len(), "window_days", p.WindowDays)
	return ds, nil
}

func (p Postgres) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
