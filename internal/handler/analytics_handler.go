package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/internal/middleware"
	"github.com/edmiller1/woofs-welcome-sub000/internal/service"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// AnalyticsHandler handles view tracking and dashboard read requests
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	logger           *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService service.AnalyticsService, logger *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// RecordViewRequest is the body for POST /api/places/{placeID}/views
type RecordViewRequest struct {
	SessionID  string  `json:"session_id"`
	UserID     *string `json:"user_id,omitempty"`
	Source     *string `json:"source,omitempty"`
	Referrer   *string `json:"referrer,omitempty"`
	City       *string `json:"city,omitempty"`
	Region     *string `json:"region,omitempty"`
	DeviceType *string `json:"device_type,omitempty"`
}

// RecordViewResponse reports the recorder's decision
type RecordViewResponse struct {
	Success bool   `json:"success"`
	Counted bool   `json:"counted"`
	Reason  string `json:"reason,omitempty"`
}

// DataResponse wraps successful read responses
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// RecordView handles POST /api/places/{placeID}/views.
//
// View tracking must never break the page that triggered it: infrastructure
// failures degrade to "not counted" with a 200 rather than an error.
func (h *AnalyticsHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeID := chi.URLParam(r, "placeID")

	req := &RecordViewRequest{}
	if r.Body != nil {
		// An unreadable body is treated the same as an empty one
		_ = json.NewDecoder(r.Body).Decode(req)
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}

	input := &domain.RecordViewInput{
		PlaceID:    placeID,
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		Source:     req.Source,
		Referrer:   req.Referrer,
		City:       req.City,
		Region:     req.Region,
		DeviceType: req.DeviceType,
	}

	result, err := h.analyticsService.RecordView(ctx, input)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Type == apperrors.ErrorTypeValidation {
			respondError(w, appErr, h.logger)
			return
		}
		h.logger.WithError(err).WithField("place_id", placeID).Error("Failed to record view")
		respondJSON(w, http.StatusOK, &RecordViewResponse{
			Success: true,
			Counted: false,
			Reason:  domain.ReasonUnavailable,
		}, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &RecordViewResponse{
		Success: true,
		Counted: result.Counted,
		Reason:  result.Reason,
	}, h.logger)
}

// GetRealtimeStats handles GET /api/places/{placeID}/analytics/realtime
func (h *AnalyticsHandler) GetRealtimeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeID := chi.URLParam(r, "placeID")

	if err := h.verifyAccess(r, placeID); err != nil {
		respondError(w, err, h.logger)
		return
	}

	stats, err := h.analyticsService.GetRealtimeStats(ctx, placeID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &DataResponse{Success: true, Data: stats}, h.logger)
}

// GetViewsBySource handles GET /api/places/{placeID}/analytics/sources
func (h *AnalyticsHandler) GetViewsBySource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeID := chi.URLParam(r, "placeID")

	if err := h.verifyAccess(r, placeID); err != nil {
		respondError(w, err, h.logger)
		return
	}

	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	sources, err := h.analyticsService.GetViewsBySource(ctx, placeID, date)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &DataResponse{Success: true, Data: sources}, h.logger)
}

// GetViewsByCity handles GET /api/places/{placeID}/analytics/cities
func (h *AnalyticsHandler) GetViewsByCity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeID := chi.URLParam(r, "placeID")

	if err := h.verifyAccess(r, placeID); err != nil {
		respondError(w, err, h.logger)
		return
	}

	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	cities, err := h.analyticsService.GetViewsByCity(ctx, placeID, date)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &DataResponse{Success: true, Data: cities}, h.logger)
}

// DurationRequest is the body for PATCH /api/views/{viewID}/duration
type DurationRequest struct {
	Seconds int `json:"seconds"`
}

// RecordDuration handles the client-side time-on-page signal
func (h *AnalyticsHandler) RecordDuration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewID := chi.URLParam(r, "viewID")

	req := &DurationRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", nil), h.logger)
		return
	}

	if err := h.analyticsService.RecordTimeOnPage(ctx, viewID, req.Seconds); err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, &DataResponse{Success: true}, h.logger)
}

// verifyAccess resolves the authenticated user and checks place ownership
func (h *AnalyticsHandler) verifyAccess(r *http.Request, placeID string) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return apperrors.NewAuthenticationError("authentication required")
	}
	return h.analyticsService.VerifyPlaceAccess(r.Context(), placeID, claims.UserID)
}

// parseDateParam reads an optional ?date=2006-01-02 query parameter. A zero
// time means "today" to the service layer.
func parseDateParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := redis.ParseDateKey(raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must be formatted YYYY-MM-DD", nil)
	}
	return date, nil
}
