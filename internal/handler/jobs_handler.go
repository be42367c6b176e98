package handler

import (
	"net/http"
	"time"

	"github.com/edmiller1/woofs-welcome-sub000/internal/service"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// JobsHandler exposes the cron-triggered maintenance jobs. The scheduler is
// an external collaborator that calls these endpoints on fixed intervals:
// flush-views every 5 minutes, aggregate-daily around 01:00, cleanup-keys
// around 02:00. Aggregation must run before cleanup for the same date.
type JobsHandler struct {
	analyticsService service.AnalyticsService
	cronSecret       string
	logger           *logger.Logger
	now              func() time.Time
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(analyticsService service.AnalyticsService, cronSecret string, logger *logger.Logger) *JobsHandler {
	return &JobsHandler{
		analyticsService: analyticsService,
		cronSecret:       cronSecret,
		logger:           logger,
		now:              time.Now,
	}
}

// JobResponse reports the outcome of a job run
type JobResponse struct {
	Success bool        `json:"success"`
	Job     string      `json:"job"`
	Data    interface{} `json:"data,omitempty"`
}

// FlushViews handles POST /api/jobs/flush-views. It targets the previous
// complete hour bucket, never the one still being appended to; ?hour=
// overrides the target for backfills.
func (h *JobsHandler) FlushViews(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	hourKey := r.URL.Query().Get("hour")
	if hourKey == "" {
		hourKey = redis.PreviousHourKey(h.now().UTC())
	}

	flushed, err := h.analyticsService.FlushHour(r.Context(), hourKey)
	if err != nil {
		// The pending batch stays in the cache; the next run retries
		h.logger.WithError(err).WithField("hour_key", hourKey).Error("Flush job failed")
		respondError(w, apperrors.NewInternalError("flush job failed", err), h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &JobResponse{
		Success: true,
		Job:     "flush_views",
		Data:    map[string]interface{}{"hour_key": hourKey, "flushed": flushed},
	}, h.logger)
}

// AggregateDaily handles POST /api/jobs/aggregate-daily, operating on
// yesterday unless ?date= overrides it.
func (h *JobsHandler) AggregateDaily(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	date, err := h.dateParamOrYesterday(r)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	if err := h.analyticsService.AggregateDaily(r.Context(), date); err != nil {
		h.logger.WithError(err).WithField("date", redis.DateKey(date)).Error("Aggregation job failed")
		respondError(w, apperrors.NewInternalError("aggregation job failed", err), h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &JobResponse{
		Success: true,
		Job:     "aggregate_daily",
		Data:    map[string]interface{}{"date": redis.DateKey(date)},
	}, h.logger)
}

// CleanupKeys handles POST /api/jobs/cleanup-keys, operating on yesterday
// unless ?date= overrides it. Scheduled after AggregateDaily for the same
// date; running it earlier would delete the aggregator's inputs.
func (h *JobsHandler) CleanupKeys(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	date, err := h.dateParamOrYesterday(r)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	if err := h.analyticsService.CleanupKeys(r.Context(), date); err != nil {
		h.logger.WithError(err).WithField("date", redis.DateKey(date)).Error("Cleanup job failed")
		respondError(w, apperrors.NewInternalError("cleanup job failed", err), h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &JobResponse{
		Success: true,
		Job:     "cleanup_keys",
		Data:    map[string]interface{}{"date": redis.DateKey(date)},
	}, h.logger)
}

// authorize checks the shared cron secret. Fails closed when no secret is
// configured.
func (h *JobsHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.cronSecret == "" || r.Header.Get("X-Cron-Secret") != h.cronSecret {
		respondError(w, apperrors.NewAuthorizationError("invalid cron secret"), h.logger)
		return false
	}
	return true
}

func (h *JobsHandler) dateParamOrYesterday(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.now().UTC().AddDate(0, 0, -1), nil
	}
	date, err := redis.ParseDateKey(raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must be formatted YYYY-MM-DD", nil)
	}
	return date, nil
}
