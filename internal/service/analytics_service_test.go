package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/internal/repository"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

var testNow = time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

// stubViewRepo is an in-memory ViewRepository
type stubViewRepo struct {
	mu         sync.Mutex
	inserted   []*domain.ViewEvent
	insertErr  error
	avg        *float64
	avgErr     error
	lastStart  time.Time
	lastEnd    time.Time
	timeOnPage map[string]int
}

func (r *stubViewRepo) InsertViews(ctx context.Context, views []*domain.ViewEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.inserted = append(r.inserted, views...)
	return int64(len(views)), nil
}

func (r *stubViewRepo) AverageTimeOnPage(ctx context.Context, placeID string, start, end time.Time) (*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastStart, r.lastEnd = start, end
	return r.avg, r.avgErr
}

func (r *stubViewRepo) UpdateTimeOnPage(ctx context.Context, viewID string, seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timeOnPage == nil {
		r.timeOnPage = make(map[string]int)
	}
	r.timeOnPage[viewID] = seconds
	return nil
}

// stubPlaceRepo is an in-memory PlaceRepository
type stubPlaceRepo struct {
	mu     sync.Mutex
	places map[string]*domain.Place
	owners map[string]string // placeID -> owning userID
	views  map[string]int64
	addErr error
}

func newStubPlaceRepo() *stubPlaceRepo {
	return &stubPlaceRepo{
		places: make(map[string]*domain.Place),
		owners: make(map[string]string),
		views:  make(map[string]int64),
	}
}

func (r *stubPlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.places[id], nil
}

func (r *stubPlaceRepo) AddViews(ctx context.Context, placeID string, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.views[placeID] += count
	return nil
}

func (r *stubPlaceRepo) IsOwnedBy(ctx context.Context, placeID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[placeID] == userID, nil
}

// stubDailyRepo is an in-memory DailyAnalyticsRepository enforcing the
// (place_id, date) uniqueness the real table has
type stubDailyRepo struct {
	mu        sync.Mutex
	rows      map[string]*domain.DailyAnalytics
	insertErr error
}

func newStubDailyRepo() *stubDailyRepo {
	return &stubDailyRepo{rows: make(map[string]*domain.DailyAnalytics)}
}

func (r *stubDailyRepo) Insert(ctx context.Context, row *domain.DailyAnalytics) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	key := row.PlaceID + "|" + redis.DateKey(row.Date)
	if _, exists := r.rows[key]; exists {
		return false, nil
	}
	r.rows[key] = row
	return true, nil
}

type analyticsFixture struct {
	mr        *miniredis.Miniredis
	client    *redis.Client
	svc       *analyticsService
	viewRepo  *stubViewRepo
	placeRepo *stubPlaceRepo
	dailyRepo *stubDailyRepo
}

func setupAnalytics(t *testing.T) *analyticsFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := logger.New("error", "test")
	require.NoError(t, err)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	viewRepo := &stubViewRepo{}
	placeRepo := newStubPlaceRepo()
	dailyRepo := newStubDailyRepo()

	svc := NewAnalyticsService(client, &repository.Repositories{
		Views:          viewRepo,
		Places:         placeRepo,
		DailyAnalytics: dailyRepo,
	}, log).(*analyticsService)
	svc.now = func() time.Time { return testNow }

	return &analyticsFixture{
		mr:        mr,
		client:    client,
		svc:       svc,
		viewRepo:  viewRepo,
		placeRepo: placeRepo,
		dailyRepo: dailyRepo,
	}
}

func strPtr(s string) *string {
	return &s
}

func viewInput(placeID, sessionID string) *domain.RecordViewInput {
	return &domain.RecordViewInput{PlaceID: placeID, SessionID: sessionID}
}

func TestRecordView_RequiresIdentifiers(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	_, err := f.svc.RecordView(ctx, viewInput("", "s1"))
	require.Error(t, err)

	appErr := &apperrors.AppError{}
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)

	_, err = f.svc.RecordView(ctx, viewInput("p1", ""))
	assert.Error(t, err)
}

func TestRecordView_DedupWindow(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	result, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)
	assert.True(t, result.Counted)

	result, err = f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)
	assert.False(t, result.Counted)
	assert.Equal(t, domain.ReasonDuplicate, result.Reason)

	// Once the marker expires the same session counts again
	f.mr.FastForward(31 * time.Minute)

	result, err = f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)
	assert.True(t, result.Counted)
}

func TestRecordView_DuplicateDoesNotConsumeRateLimit(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	_, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		result, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonDuplicate, result.Reason)
	}

	rateLimitKey := f.client.KeyBuilder.KeyViewRateLimit("s1", "p1", redis.HourKey(testNow))
	count, err := f.client.Get(ctx, rateLimitKey)
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestRecordView_RateLimit(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	// Expire the dedup marker between calls so every attempt reaches the
	// rate limiter. The counter's expiry is re-applied on each increment so
	// it survives the fast-forwards.
	for i := 1; i <= RateLimitMaxViews; i++ {
		result, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
		require.NoError(t, err)
		assert.True(t, result.Counted, "call %d should be counted", i)
		f.mr.FastForward(31 * time.Minute)
	}

	result, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)
	assert.False(t, result.Counted)
	assert.Equal(t, domain.ReasonRateLimit, result.Reason)
}

func TestRecordView_CounterAdditivity(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	sessions := []string{"s1", "s2", "s3"}
	for _, session := range sessions {
		result, err := f.svc.RecordView(ctx, viewInput("p1", session))
		require.NoError(t, err)
		require.True(t, result.Counted)
	}

	stats, err := f.svc.GetRealtimeStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(len(sessions)), stats.Total)
	assert.Equal(t, int64(len(sessions)), stats.Today)
	assert.Equal(t, int64(len(sessions)), stats.ThisHour)
	assert.Equal(t, int64(len(sessions)), stats.UniqueToday)
}

func TestRecordView_UniqueSessionsCountedOnce(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	_, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)

	f.mr.FastForward(31 * time.Minute)

	_, err = f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)

	stats, err := f.svc.GetRealtimeStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.UniqueToday)
}

func TestGetRealtimeStats_UnknownPlaceZeroFilled(t *testing.T) {
	f := setupAnalytics(t)

	stats, err := f.svc.GetRealtimeStats(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, &domain.RealtimeStats{}, stats)
}

func TestGetViewsBySource_SortedByViews(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	inputs := []*domain.RecordViewInput{
		{PlaceID: "p1", SessionID: "s1", Source: strPtr("search")},
		{PlaceID: "p1", SessionID: "s2", Source: strPtr("search")},
		{PlaceID: "p1", SessionID: "s3", Source: strPtr("social")},
	}
	for _, input := range inputs {
		_, err := f.svc.RecordView(ctx, input)
		require.NoError(t, err)
	}

	sources, err := f.svc.GetViewsBySource(ctx, "p1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceViews{
		{Source: "search", Views: 2},
		{Source: "social", Views: 1},
	}, sources)
}

func TestGetViewsByCity_TopTenOnly(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	cities := []string{
		"Auckland", "Wellington", "Christchurch", "Hamilton", "Tauranga",
		"Dunedin", "Napier", "Nelson", "Rotorua", "Queenstown", "Invercargill",
	}
	for i, city := range cities {
		_, err := f.svc.RecordView(ctx, &domain.RecordViewInput{
			PlaceID:   "p1",
			SessionID: "session-" + city,
			City:      strPtr(city),
		})
		require.NoError(t, err, "city %d", i)
	}

	result, err := f.svc.GetViewsByCity(ctx, "p1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, result, TopCitiesLimit)
}

func TestVerifyPlaceAccess(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	f.placeRepo.places["p1"] = &domain.Place{ID: "p1", BusinessID: "b1"}
	f.placeRepo.owners["p1"] = "owner-1"

	tests := []struct {
		name         string
		placeID      string
		userID       string
		expectedType apperrors.ErrorType
	}{
		{
			name:    "owner is allowed",
			placeID: "p1",
			userID:  "owner-1",
		},
		{
			name:         "unknown place is not found",
			placeID:      "missing",
			userID:       "owner-1",
			expectedType: apperrors.ErrorTypeNotFound,
		},
		{
			name:         "non-owner is forbidden",
			placeID:      "p1",
			userID:       "intruder",
			expectedType: apperrors.ErrorTypeAuthorization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.VerifyPlaceAccess(ctx, tt.placeID, tt.userID)
			if tt.expectedType == "" {
				assert.NoError(t, err)
				return
			}
			appErr := &apperrors.AppError{}
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.expectedType, appErr.Type)
		})
	}
}

func TestRecordTimeOnPage(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RecordTimeOnPage(ctx, "v1", 95))
	assert.Equal(t, 95, f.viewRepo.timeOnPage["v1"])

	err := f.svc.RecordTimeOnPage(ctx, "v1", -1)
	assert.Error(t, err)

	err = f.svc.RecordTimeOnPage(ctx, "v1", 100000)
	assert.Error(t, err)
}

func TestEndToEnd_RecordFlushAndRead(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	for _, session := range []string{"s1", "s2", "s3"} {
		result, err := f.svc.RecordView(ctx, &domain.RecordViewInput{
			PlaceID:   "P1",
			SessionID: session,
			Source:    strPtr("search"),
			City:      strPtr("Auckland"),
		})
		require.NoError(t, err)
		require.True(t, result.Counted)
	}

	stats, err := f.svc.GetRealtimeStats(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, &domain.RealtimeStats{Total: 3, Today: 3, ThisHour: 3, UniqueToday: 3}, stats)

	sources, err := f.svc.GetViewsBySource(ctx, "P1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceViews{{Source: "search", Views: 3}}, sources)

	cities, err := f.svc.GetViewsByCity(ctx, "P1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []domain.CityViews{{City: "Auckland", Views: 3}}, cities)

	// The 5-minute job flushes the now-complete bucket
	flushed, err := f.svc.FlushHour(ctx, redis.HourKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, 3, flushed)

	require.Len(t, f.viewRepo.inserted, 3)
	for _, event := range f.viewRepo.inserted {
		assert.Equal(t, "P1", event.PlaceID)
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, testNow, event.ViewedAt)
	}
	assert.Equal(t, int64(3), f.placeRepo.views["P1"])
}
