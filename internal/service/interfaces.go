package service

import (
	"context"
	"time"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
)

// AuthService defines the interface for authentication operations
type AuthService interface {
	// ValidateToken validates a bearer token and returns its claims
	ValidateToken(ctx context.Context, token string) (*domain.AuthClaims, error)
}

// AnalyticsService defines the view-analytics ingestion and aggregation
// operations: the request hot path, the dashboard reads, and the three
// cron-triggered maintenance jobs.
type AnalyticsService interface {
	// RecordView applies dedup and rate-limit policy, updates real-time
	// counters and enqueues the event for durable flush
	RecordView(ctx context.Context, input *domain.RecordViewInput) (*domain.RecordResult, error)

	// GetRealtimeStats reads the cache counters for a place, zero-filled for
	// places with no traffic
	GetRealtimeStats(ctx context.Context, placeID string) (*domain.RealtimeStats, error)

	// GetViewsBySource returns the traffic-source breakdown for a day
	GetViewsBySource(ctx context.Context, placeID string, date time.Time) ([]domain.SourceViews, error)

	// GetViewsByCity returns the top cities by views for a day
	GetViewsByCity(ctx context.Context, placeID string, date time.Time) ([]domain.CityViews, error)

	// VerifyPlaceAccess checks that the place exists and belongs to a
	// business owned by the user; analytics reads are gated on it
	VerifyPlaceAccess(ctx context.Context, placeID, userID string) error

	// RecordTimeOnPage fills the client-side engagement signal on a view row
	RecordTimeOnPage(ctx context.Context, viewID string, seconds int) error

	// FlushHour drains the pending batch for an hour bucket into the
	// durable store and returns how many views were flushed
	FlushHour(ctx context.Context, hourKey string) (int, error)

	// AggregateDaily produces one durable summary row per active place for
	// the given date
	AggregateDaily(ctx context.Context, date time.Time) error

	// CleanupKeys removes the per-day cache structures for the given date.
	// It must run after AggregateDaily for the same date.
	CleanupKeys(ctx context.Context, date time.Time) error
}

// Services aggregates all service interfaces
type Services struct {
	Auth      AuthService
	Analytics AnalyticsService
}
