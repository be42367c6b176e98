package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/database"
)

// dailyAnalyticsRepository handles daily summary rows with PostgreSQL
type dailyAnalyticsRepository struct {
	db *database.PostgresDB
}

// NewDailyAnalyticsRepository creates a new daily analytics repository
func NewDailyAnalyticsRepository(db *database.PostgresDB) DailyAnalyticsRepository {
	return &dailyAnalyticsRepository{
		db: db,
	}
}

// Insert creates one summary row per (place_id, date). A conflict means the
// day was already aggregated; the unique constraint guards against double
// inserts and the caller treats false as a benign skip.
func (r *dailyAnalyticsRepository) Insert(ctx context.Context, row *domain.DailyAnalytics) (bool, error) {
	bySource, err := json.Marshal(row.ViewsBySource)
	if err != nil {
		return false, fmt.Errorf("failed to marshal views by source: %w", err)
	}

	byCity, err := json.Marshal(row.ViewsByCity)
	if err != nil {
		return false, fmt.Errorf("failed to marshal views by city: %w", err)
	}

	query := `
		INSERT INTO daily_analytics (
			id, place_id, date, total_views, unique_views,
			views_by_source, views_by_city, avg_time_on_page
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (place_id, date) DO NOTHING
	`

	result, err := r.db.Pool.Exec(ctx, query,
		row.ID,
		row.PlaceID,
		row.Date,
		row.TotalViews,
		row.UniqueViews,
		bySource,
		byCity,
		row.AvgTimeOnPage,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert daily analytics: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
