package redis

import (
	"fmt"
	"strings"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// View analytics key builders

// KeyPlaceViews is the per-place counter hash (total, day:*, hour:* fields)
func (kb *KeyBuilder) KeyPlaceViews(placeID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPlaceViews, placeID))
}

// KeyViewDedup marks (place, session) pairs that already counted a view
func (kb *KeyBuilder) KeyViewDedup(placeID, sessionID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyViewDedup, placeID, sessionID))
}

// KeyViewRateLimit counts attempted views per session per place per hour
func (kb *KeyBuilder) KeyViewRateLimit(sessionID, placeID, hourKey string) string {
	return kb.BuildKey(fmt.Sprintf(KeyViewRateLimit, sessionID, placeID, hourKey))
}

// KeyViewsBatch is the pending-flush list for an hour bucket
func (kb *KeyBuilder) KeyViewsBatch(hourKey string) string {
	return kb.BuildKey(fmt.Sprintf(KeyViewsBatch, hourKey))
}

// KeyPlaceSessions is the unique-session set for a place and day
func (kb *KeyBuilder) KeyPlaceSessions(placeID, dateKey string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPlaceSessions, placeID, dateKey))
}

// KeyPlaceSources is the per-day traffic-source count hash for a place
func (kb *KeyBuilder) KeyPlaceSources(placeID, dateKey string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPlaceSources, placeID, dateKey))
}

// KeyPlaceCities is the per-day city-count sorted set for a place
func (kb *KeyBuilder) KeyPlaceCities(placeID, dateKey string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPlaceCities, placeID, dateKey))
}

// PatternPlaceViews matches every place counter hash in this environment
func (kb *KeyBuilder) PatternPlaceViews() string {
	return kb.BuildKey("place:*:views")
}

// PatternsForDate matches the per-day structures (sessions, sources, cities)
// for every place on the given date. These are the keys the janitor removes.
func (kb *KeyBuilder) PatternsForDate(dateKey string) []string {
	return []string{
		kb.BuildKey(fmt.Sprintf("place:*:sessions:%s", dateKey)),
		kb.BuildKey(fmt.Sprintf("place:*:sources:%s", dateKey)),
		kb.BuildKey(fmt.Sprintf("place:*:cities:%s", dateKey)),
	}
}

// PlaceIDFromViewsKey extracts the place id from a scanned place counter key
// (prefix:place:<id>:views). The second return is false when the key does not
// have that shape.
func (kb *KeyBuilder) PlaceIDFromViewsKey(key string) (string, bool) {
	trimmed := strings.TrimPrefix(key, kb.prefix+":place:")
	if trimmed == key {
		return "", false
	}
	placeID := strings.TrimSuffix(trimmed, ":views")
	if placeID == trimmed || placeID == "" {
		return "", false
	}
	return placeID, true
}
