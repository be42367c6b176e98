package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
)

// FlushHour drains the pending batch for an hour bucket into PostgreSQL.
//
// The list is read non-destructively and deleted only after both the bulk
// insert and the per-place counter updates succeed. Any failure leaves the
// batch intact for the next scheduled run; the batch key TTL is the only
// bound on the retry window (at-least-once delivery). A crash between a
// successful insert and the delete therefore re-flushes the same events,
// which is the documented baseline behavior.
func (s *analyticsService) FlushHour(ctx context.Context, hourKey string) (int, error) {
	batchKey := s.redisClient.KeyBuilder.KeyViewsBatch(hourKey)

	items, err := s.redisClient.LRange(ctx, batchKey, 0, -1)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending batch %s: %w", hourKey, err)
	}
	if len(items) == 0 {
		s.logger.WithField("hour_key", hourKey).Debug("No pending views to flush")
		return 0, nil
	}

	events := make([]*domain.ViewEvent, 0, len(items))
	for _, item := range items {
		event := &domain.ViewEvent{}
		if err := json.Unmarshal([]byte(item), event); err != nil {
			// A corrupt entry would poison the batch forever; drop it loudly
			s.logger.WithError(err).WithField("hour_key", hourKey).Warn("Skipping undecodable view event in pending batch")
			continue
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		s.logger.WithField("hour_key", hourKey).Warn("Pending batch contained no decodable events, deleting")
		if err := s.redisClient.Delete(ctx, batchKey); err != nil {
			return 0, fmt.Errorf("failed to delete empty batch %s: %w", hourKey, err)
		}
		return 0, nil
	}

	inserted, err := s.viewRepo.InsertViews(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("failed to insert view records for %s: %w", hourKey, err)
	}

	perPlace := make(map[string]int64)
	for _, event := range events {
		perPlace[event.PlaceID]++
	}
	for placeID, count := range perPlace {
		if err := s.placeRepo.AddViews(ctx, placeID, count); err != nil {
			return 0, fmt.Errorf("failed to update total views for place %s: %w", placeID, err)
		}
	}

	if err := s.redisClient.Delete(ctx, batchKey); err != nil {
		return len(events), fmt.Errorf("flushed %d views but failed to delete pending batch %s: %w", len(events), hourKey, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"hour_key": hourKey,
		"flushed":  len(events),
		"inserted": inserted,
		"places":   len(perPlace),
	}).Info("Flushed pending views to database")

	return len(events), nil
}
