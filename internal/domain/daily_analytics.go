package domain

import (
	"time"
)

// DailyAnalytics is one durable summary row per (place, date). Rows are
// append-only and sparse: an inactive place produces no row for that day.
type DailyAnalytics struct {
	ID            string           `json:"id" db:"id"`
	PlaceID       string           `json:"place_id" db:"place_id"`
	Date          time.Time        `json:"date" db:"date"`
	TotalViews    int64            `json:"total_views" db:"total_views"`
	UniqueViews   int64            `json:"unique_views" db:"unique_views"`
	ViewsBySource map[string]int64 `json:"views_by_source" db:"views_by_source"`
	ViewsByCity   []CityViews      `json:"views_by_city" db:"views_by_city"`
	AvgTimeOnPage *float64         `json:"avg_time_on_page,omitempty" db:"avg_time_on_page"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
