package domain

import (
	"time"
)

// Place is the owning entity of view analytics. TotalViews is a denormalized
// counter maintained by the flush job; the durable value is authoritative
// over the cache counter once flushed.
type Place struct {
	ID                   string     `json:"id" db:"id"`
	BusinessID           string     `json:"business_id" db:"business_id"`
	Name                 string     `json:"name" db:"name"`
	City                 string     `json:"city" db:"city"`
	TotalViews           int64      `json:"total_views" db:"total_views"`
	AnalyticsLastUpdated *time.Time `json:"analytics_last_updated,omitempty" db:"analytics_last_updated"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
}

// AuthClaims are the validated identity claims attached to a request
type AuthClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}
