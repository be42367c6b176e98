package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/internal/repository"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// TTL constants for view tracking
const (
	TTLDedupMarker  = 30 * time.Minute // one counted view per (place, session) within this window
	TTLRateLimit    = 1 * time.Hour    // attempted-view counter window
	TTLPendingBatch = 2 * time.Hour    // safety net against a stuck flush job
	TTLDailyKeys    = 48 * time.Hour   // per-day sets and breakdowns; janitor usually wins
)

// Policy constants
const (
	RateLimitMaxViews = 5  // max counted views per session per place per hour
	TopCitiesLimit    = 10 // city breakdown size
)

// analyticsService implements AnalyticsService on Redis and PostgreSQL
type analyticsService struct {
	redisClient *redis.Client
	viewRepo    repository.ViewRepository
	placeRepo   repository.PlaceRepository
	dailyRepo   repository.DailyAnalyticsRepository
	logger      *logger.Logger
	now         func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(redisClient *redis.Client, repos *repository.Repositories, logger *logger.Logger) AnalyticsService {
	return &analyticsService{
		redisClient: redisClient,
		viewRepo:    repos.Views,
		placeRepo:   repos.Places,
		dailyRepo:   repos.DailyAnalytics,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordView applies the acceptance policy in strict order: dedup check,
// rate-limit check, dedup marker, rate-limit increment, counter batch,
// batch enqueue. Each side effect happens only if the prior steps passed.
// Steps after acceptance are best-effort; there is no rollback on a partial
// failure.
func (s *analyticsService) RecordView(ctx context.Context, input *domain.RecordViewInput) (*domain.RecordResult, error) {
	if input.PlaceID == "" || input.SessionID == "" {
		return nil, apperrors.NewValidationError("place_id and session_id are required", nil)
	}

	now := s.now().UTC()
	hourKey := redis.HourKey(now)
	dateKey := redis.DateKey(now)
	kb := s.redisClient.KeyBuilder

	// Dedup check. Must short-circuit before the rate-limit counter is
	// touched so a duplicate never consumes rate-limit budget.
	dedupKey := kb.KeyViewDedup(input.PlaceID, input.SessionID)
	exists, err := s.redisClient.Exists(ctx, dedupKey)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if exists > 0 {
		return &domain.RecordResult{Counted: false, Reason: domain.ReasonDuplicate}, nil
	}

	// Rate-limit check, read only at this point
	rateLimitKey := kb.KeyViewRateLimit(input.SessionID, input.PlaceID, hourKey)
	current, err := s.redisClient.Get(ctx, rateLimitKey)
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if current != "" {
		count, parseErr := strconv.ParseInt(current, 10, 64)
		if parseErr == nil && count >= RateLimitMaxViews {
			s.logger.WithFields(map[string]interface{}{
				"place_id":   input.PlaceID,
				"session_id": input.SessionID,
				"count":      count,
			}).Debug("View rate limit reached")
			return &domain.RecordResult{Counted: false, Reason: domain.ReasonRateLimit}, nil
		}
	}

	// Mark deduplication. SETNX keeps the write atomic; the check above and
	// this write still race across concurrent requests, which is an accepted
	// bounded inaccuracy.
	if _, err := s.redisClient.SetNX(ctx, dedupKey, "1", TTLDedupMarker); err != nil {
		return nil, fmt.Errorf("failed to set dedup marker: %w", err)
	}

	// Increment the attempted-view counter. The expiry is re-applied on
	// every increment so a late first write cannot leave the key unbounded.
	if _, err := s.redisClient.Incr(ctx, rateLimitKey); err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if err := s.redisClient.Expire(ctx, rateLimitKey, TTLRateLimit); err != nil {
		s.logger.WithError(err).Warn("Failed to set rate limit key expiry")
	}

	// Real-time counters as one pipelined batch. Partial application on a
	// mid-batch failure is tolerated; no cross-key transaction.
	viewsKey := kb.KeyPlaceViews(input.PlaceID)
	sessionsKey := kb.KeyPlaceSessions(input.PlaceID, dateKey)

	pipe := s.redisClient.Pipeline()
	pipe.HIncrBy(ctx, viewsKey, "total", 1)
	pipe.HIncrBy(ctx, viewsKey, "day:"+dateKey, 1)
	pipe.HIncrBy(ctx, viewsKey, "hour:"+hourKey, 1)
	pipe.SAdd(ctx, sessionsKey, input.SessionID)
	pipe.Expire(ctx, sessionsKey, TTLDailyKeys)
	if input.Source != nil && *input.Source != "" {
		sourcesKey := kb.KeyPlaceSources(input.PlaceID, dateKey)
		pipe.HIncrBy(ctx, sourcesKey, *input.Source, 1)
		pipe.Expire(ctx, sourcesKey, TTLDailyKeys)
	}
	if input.City != nil && *input.City != "" {
		citiesKey := kb.KeyPlaceCities(input.PlaceID, dateKey)
		pipe.ZIncrBy(ctx, citiesKey, 1, *input.City)
		pipe.Expire(ctx, citiesKey, TTLDailyKeys)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update realtime counters: %w", err)
	}

	// Enqueue for durable flush
	event := &domain.ViewEvent{
		ID:         uuid.NewString(),
		PlaceID:    input.PlaceID,
		UserID:     input.UserID,
		SessionID:  input.SessionID,
		Source:     input.Source,
		Referrer:   input.Referrer,
		City:       input.City,
		Region:     input.Region,
		DeviceType: input.DeviceType,
		ViewedAt:   now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize view event: %w", err)
	}

	batchKey := kb.KeyViewsBatch(hourKey)
	if err := s.redisClient.RPush(ctx, batchKey, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue view event: %w", err)
	}
	if err := s.redisClient.Expire(ctx, batchKey, TTLPendingBatch); err != nil {
		s.logger.WithError(err).Warn("Failed to set pending batch expiry")
	}

	s.logger.WithFields(map[string]interface{}{
		"place_id": input.PlaceID,
		"hour_key": hourKey,
	}).Debug("View recorded")

	return &domain.RecordResult{Counted: true}, nil
}

// GetRealtimeStats reads the cache counters for a place. Unknown places get
// zero-filled stats so dashboards render cleanly for new places.
func (s *analyticsService) GetRealtimeStats(ctx context.Context, placeID string) (*domain.RealtimeStats, error) {
	now := s.now().UTC()
	kb := s.redisClient.KeyBuilder

	fields, err := s.redisClient.HGetAll(ctx, kb.KeyPlaceViews(placeID))
	if err != nil {
		return nil, fmt.Errorf("failed to read view counters: %w", err)
	}

	unique, err := s.redisClient.SCard(ctx, kb.KeyPlaceSessions(placeID, redis.DateKey(now)))
	if err != nil {
		return nil, fmt.Errorf("failed to read unique sessions: %w", err)
	}

	return &domain.RealtimeStats{
		Total:       parseCounter(fields["total"]),
		Today:       parseCounter(fields["day:"+redis.DateKey(now)]),
		ThisHour:    parseCounter(fields["hour:"+redis.HourKey(now)]),
		UniqueToday: unique,
	}, nil
}

// GetViewsBySource returns the traffic-source breakdown for a day, most
// viewed first. A zero date means today.
func (s *analyticsService) GetViewsBySource(ctx context.Context, placeID string, date time.Time) ([]domain.SourceViews, error) {
	dateKey := s.dateKeyOrToday(date)

	fields, err := s.redisClient.HGetAll(ctx, s.redisClient.KeyBuilder.KeyPlaceSources(placeID, dateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read source breakdown: %w", err)
	}

	result := make([]domain.SourceViews, 0, len(fields))
	for source, count := range fields {
		result = append(result, domain.SourceViews{Source: source, Views: parseCounter(count)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].Source < result[j].Source
	})

	return result, nil
}

// GetViewsByCity returns the top cities by views for a day, highest first.
// A zero date means today.
func (s *analyticsService) GetViewsByCity(ctx context.Context, placeID string, date time.Time) ([]domain.CityViews, error) {
	dateKey := s.dateKeyOrToday(date)

	members, err := s.redisClient.ZRevRangeWithScores(ctx, s.redisClient.KeyBuilder.KeyPlaceCities(placeID, dateKey), 0, TopCitiesLimit-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read city breakdown: %w", err)
	}

	result := make([]domain.CityViews, 0, len(members))
	for _, z := range members {
		city, ok := z.Member.(string)
		if !ok {
			continue
		}
		result = append(result, domain.CityViews{City: city, Views: int64(z.Score)})
	}

	return result, nil
}

// VerifyPlaceAccess gates analytics reads: the place must exist and belong
// to a business owned by the requesting user.
func (s *analyticsService) VerifyPlaceAccess(ctx context.Context, placeID, userID string) error {
	place, err := s.placeRepo.GetByID(ctx, placeID)
	if err != nil {
		return apperrors.NewInternalError("failed to look up place", err)
	}
	if place == nil {
		return apperrors.NewNotFoundError("place not found")
	}

	owned, err := s.placeRepo.IsOwnedBy(ctx, placeID, userID)
	if err != nil {
		return apperrors.NewInternalError("failed to check place ownership", err)
	}
	if !owned {
		return apperrors.NewAuthorizationError("place does not belong to your business")
	}

	return nil
}

// RecordTimeOnPage stores the client-side engagement signal on a view row
func (s *analyticsService) RecordTimeOnPage(ctx context.Context, viewID string, seconds int) error {
	if seconds < 0 || seconds > 24*60*60 {
		return apperrors.NewValidationError("seconds must be between 0 and 86400", nil)
	}
	return s.viewRepo.UpdateTimeOnPage(ctx, viewID, seconds)
}

func (s *analyticsService) dateKeyOrToday(date time.Time) string {
	if date.IsZero() {
		return redis.DateKey(s.now().UTC())
	}
	return redis.DateKey(date)
}

// parseCounter reads a Redis counter value, treating absence or garbage as zero
func parseCounter(value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
