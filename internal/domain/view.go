package domain

import (
	"time"
)

// Reasons a view was not counted
const (
	ReasonDuplicate   = "duplicate"
	ReasonRateLimit   = "rate_limit"
	ReasonUnavailable = "unavailable"
)

// ViewEvent is a single accepted place view, serialized into the pending
// batch and drained by the flush job. Never mutated after acceptance.
type ViewEvent struct {
	ID         string    `json:"id"`
	PlaceID    string    `json:"place_id"`
	UserID     *string   `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id"`
	Source     *string   `json:"source,omitempty"`
	Referrer   *string   `json:"referrer,omitempty"`
	City       *string   `json:"city,omitempty"`
	Region     *string   `json:"region,omitempty"`
	DeviceType *string   `json:"device_type,omitempty"`
	ViewedAt   time.Time `json:"viewed_at"`
}

// RecordViewInput is the payload accepted by the view recorder
type RecordViewInput struct {
	PlaceID    string  `json:"place_id"`
	SessionID  string  `json:"session_id"`
	UserID     *string `json:"user_id,omitempty"`
	Source     *string `json:"source,omitempty"`
	Referrer   *string `json:"referrer,omitempty"`
	City       *string `json:"city,omitempty"`
	Region     *string `json:"region,omitempty"`
	DeviceType *string `json:"device_type,omitempty"`
}

// RecordResult reports whether a view was counted, and why not otherwise
type RecordResult struct {
	Counted bool   `json:"counted"`
	Reason  string `json:"reason,omitempty"`
}

// RealtimeStats are the cache-resident counters for a place. Unknown places
// get a zero-valued struct, never an error.
type RealtimeStats struct {
	Total       int64 `json:"total"`
	Today       int64 `json:"today"`
	ThisHour    int64 `json:"this_hour"`
	UniqueToday int64 `json:"unique_today"`
}

// SourceViews is one traffic-source bucket in a per-day breakdown
type SourceViews struct {
	Source string `json:"source"`
	Views  int64  `json:"views"`
}

// CityViews is one city bucket in a per-day breakdown
type CityViews struct {
	City  string `json:"city"`
	Views int64  `json:"views"`
}
