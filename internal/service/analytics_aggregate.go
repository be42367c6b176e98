package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// AggregateDaily produces one durable summary row per place that recorded
// traffic on the given date. Inactive places are skipped, so the daily table
// is sparse. A (place_id, date) conflict means the row was already written
// by an earlier run and is skipped without failing the job.
func (s *analyticsService) AggregateDaily(ctx context.Context, date time.Time) error {
	dateKey := redis.DateKey(date)
	kb := s.redisClient.KeyBuilder

	viewsKeys, err := s.redisClient.ScanKeys(ctx, kb.PatternPlaceViews())
	if err != nil {
		return fmt.Errorf("failed to scan place view keys: %w", err)
	}

	aggregated := 0
	skipped := 0
	for _, key := range viewsKeys {
		placeID, ok := kb.PlaceIDFromViewsKey(key)
		if !ok {
			s.logger.WithField("key", key).Warn("Ignoring malformed place views key")
			continue
		}

		dayCount, err := s.redisClient.HGet(ctx, key, "day:"+dateKey)
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to read day count for place %s: %w", placeID, err)
		}
		totalViews := parseCounter(dayCount)
		if totalViews == 0 {
			continue
		}

		uniqueViews, err := s.redisClient.SCard(ctx, kb.KeyPlaceSessions(placeID, dateKey))
		if err != nil {
			return fmt.Errorf("failed to read unique sessions for place %s: %w", placeID, err)
		}

		sources, err := s.redisClient.HGetAll(ctx, kb.KeyPlaceSources(placeID, dateKey))
		if err != nil {
			return fmt.Errorf("failed to read source breakdown for place %s: %w", placeID, err)
		}
		bySource := make(map[string]int64, len(sources))
		for source, count := range sources {
			bySource[source] = parseCounter(count)
		}

		byCity, err := s.GetViewsByCity(ctx, placeID, date)
		if err != nil {
			return fmt.Errorf("failed to read city breakdown for place %s: %w", placeID, err)
		}

		start, end := redis.DayWindow(date)
		avgTimeOnPage, err := s.viewRepo.AverageTimeOnPage(ctx, placeID, start, end)
		if err != nil {
			return fmt.Errorf("failed to compute avg time on page for place %s: %w", placeID, err)
		}

		row := &domain.DailyAnalytics{
			ID:            uuid.NewString(),
			PlaceID:       placeID,
			Date:          start,
			TotalViews:    totalViews,
			UniqueViews:   uniqueViews,
			ViewsBySource: bySource,
			ViewsByCity:   byCity,
			AvgTimeOnPage: avgTimeOnPage,
		}

		inserted, err := s.dailyRepo.Insert(ctx, row)
		if err != nil {
			return fmt.Errorf("failed to insert daily analytics for place %s: %w", placeID, err)
		}
		if !inserted {
			s.logger.WithFields(map[string]interface{}{
				"place_id": placeID,
				"date":     dateKey,
			}).Warn("Daily analytics row already exists, skipping")
			skipped++
			continue
		}
		aggregated++
	}

	s.logger.WithFields(map[string]interface{}{
		"date":       dateKey,
		"aggregated": aggregated,
		"skipped":    skipped,
		"scanned":    len(viewsKeys),
	}).Info("Daily analytics aggregation complete")

	return nil
}
