package repository

import (
	"context"
	"time"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
)

// ViewRepository defines the interface for durable view record operations
type ViewRepository interface {
	// InsertViews bulk-inserts flushed view events as durable rows
	InsertViews(ctx context.Context, views []*domain.ViewEvent) (int64, error)

	// AverageTimeOnPage returns the average time_on_page for a place within
	// [start, end]. Returns nil when no rows carry the signal.
	AverageTimeOnPage(ctx context.Context, placeID string, start, end time.Time) (*float64, error)

	// UpdateTimeOnPage fills the time_on_page signal on an existing view row
	UpdateTimeOnPage(ctx context.Context, viewID string, seconds int) error
}

// PlaceRepository defines the interface for place data operations
type PlaceRepository interface {
	// GetByID retrieves a place by id; returns nil without error when absent
	GetByID(ctx context.Context, id string) (*domain.Place, error)

	// AddViews atomically increments the denormalized total_views counter and
	// stamps analytics_last_updated
	AddViews(ctx context.Context, placeID string, count int64) error

	// IsOwnedBy reports whether the place belongs to a business of the user
	IsOwnedBy(ctx context.Context, placeID, userID string) (bool, error)
}

// DailyAnalyticsRepository defines the interface for daily summary rows
type DailyAnalyticsRepository interface {
	// Insert creates one daily summary row. Returns false when a row for
	// (place_id, date) already exists; that is a benign skip, not an error.
	Insert(ctx context.Context, row *domain.DailyAnalytics) (bool, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Views          ViewRepository
	Places         PlaceRepository
	DailyAnalytics DailyAnalyticsRepository
}
