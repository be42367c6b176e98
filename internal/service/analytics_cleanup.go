package service

import (
	"context"
	"fmt"
	"time"

	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// CleanupKeys removes the per-day cache structures for the given date: the
// unique-session sets and the source and city breakdowns, plus the stale
// day and hour fields inside each place counter hash (hash fields have no
// TTL of their own).
//
// Precondition: AggregateDaily must have completed for the same date, since
// this deletes its inputs. The scheduler enforces that ordering.
func (s *analyticsService) CleanupKeys(ctx context.Context, date time.Time) error {
	dateKey := redis.DateKey(date)
	kb := s.redisClient.KeyBuilder

	deleted := 0
	for _, pattern := range kb.PatternsForDate(dateKey) {
		keys, err := s.redisClient.ScanKeys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.redisClient.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("failed to delete keys for pattern %s: %w", pattern, err)
		}
		deleted += len(keys)
	}

	// Trim the date's fields out of every place counter hash
	staleFields := make([]string, 0, 25)
	staleFields = append(staleFields, "day:"+dateKey)
	for hour := 0; hour < 24; hour++ {
		staleFields = append(staleFields, fmt.Sprintf("hour:%s-%02d", dateKey, hour))
	}

	viewsKeys, err := s.redisClient.ScanKeys(ctx, kb.PatternPlaceViews())
	if err != nil {
		return fmt.Errorf("failed to scan place view keys: %w", err)
	}
	for _, key := range viewsKeys {
		if err := s.redisClient.HDel(ctx, key, staleFields...); err != nil {
			return fmt.Errorf("failed to trim stale fields from %s: %w", key, err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"date":          dateKey,
		"keys_deleted":  deleted,
		"hashes_walked": len(viewsKeys),
	}).Info("Expired analytics keys cleaned up")

	return nil
}
