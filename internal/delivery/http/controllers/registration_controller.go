package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"sportsreg/internal/delivery/http/helpers"
	"sportsreg/internal/delivery/http/middleware"
	"sportsreg/internal/domain"
)

// uuidRegex matches a canonical UUID string (8-4-4-4-12 hex).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// ListAvailableEvents godoc
// @Summary List events open for registration
// @Description Returns events currently open for registration, with approved counts, remaining slots, and whether the caller already holds an active registration.
// @Tags registration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is an array of AvailableEvent"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/available-events [get]
func (c *RegistrationController) ListAvailableEvents(w http.ResponseWriter, r *http.Request) {
	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	events, err := c.Service.ListAvailableEvents(r.Context(), playerID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// RegisterRequest is the request body for POST /api/registration/register.
type RegisterRequest struct {
	EventID string `json:"event_id"`
}

// Validate implements helpers.Validator.
func (r *RegisterRequest) Validate() []string {
	r.EventID = strings.TrimSpace(r.EventID)
	if r.EventID == "" {
		return []string{"event_id is required"}
	}
	if !uuidRegex.MatchString(r.EventID) {
		return []string{"event_id must be a valid UUID"}
	}
	return nil
}

// Register godoc
// @Summary Request registration for an event
// @Description Creates a registration in the requested state after the eligibility rules pass. A cancelled or rejected registration for the same event is reactivated instead of duplicated; 201 on a new record, 200 on reactivation.
// @Tags registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.RegisterRequest true "Target event"
// @Success 200 {object} helpers.APIResponse "Existing registration reactivated"
// @Success 201 {object} helpers.APIResponse "New registration created"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (eligibility denied; message carries the failed rule)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/register [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	reg, created, err := c.Service.Register(r.Context(), playerID, req.EventID)
	if err != nil {
		var eligErr *domain.EligibilityError
		if errors.As(err, &eligErr) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, eligErr.Reason)
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	if created {
		helpers.WriteJSONSuccess(w, http.StatusCreated, reg)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// CheckLimitsRequest is the request body for POST /api/registration/check-limits.
type CheckLimitsRequest struct {
	EventID string `json:"event_id"`
}

// Validate implements helpers.Validator.
func (r *CheckLimitsRequest) Validate() []string {
	r.EventID = strings.TrimSpace(r.EventID)
	if r.EventID == "" {
		return []string{"event_id is required"}
	}
	if !uuidRegex.MatchString(r.EventID) {
		return []string{"event_id must be a valid UUID"}
	}
	return nil
}

// CheckLimits godoc
// @Summary Check registration eligibility
// @Description Evaluates the registration rules (window, duplicate, quota, capacity) and returns the verdict with a reason. Advisory: the capacity rule is re-checked at approval time.
// @Tags registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.CheckLimitsRequest true "Target event"
// @Success 200 {object} helpers.APIResponse "data is an EligibilityResult"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/check-limits [post]
func (c *RegistrationController) CheckLimits(w http.ResponseWriter, r *http.Request) {
	var req CheckLimitsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	result, err := c.Service.CheckEligibility(r.Context(), playerID, req.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// ListMyRegistrations godoc
// @Summary List the caller's registrations
// @Description Returns the caller's registrations with event details, optionally filtered by status.
// @Tags registration
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (requested|approved|cancelled|rejected)"
// @Success 200 {object} helpers.APIResponse "data is an array of registration + event objects"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/my-registrations [get]
func (c *RegistrationController) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var status *domain.RegistrationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.RegistrationStatus(s)
		if !st.Valid() {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid status filter")
			return
		}
		status = &st
	}

	items, err := c.Service.ListMyRegistrations(r.Context(), playerID, status)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, items)
}

// CancelRequest is the request body for DELETE /api/registration/{registrationID}.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CancelResponse is the data payload returned by a cancel call.
type CancelResponse struct {
	RegistrationID   string `json:"registration_id"`
	AlreadyCancelled bool   `json:"already_cancelled"`
}

// Cancel godoc
// @Summary Cancel a registration
// @Description Cancels the caller's registration from the requested or approved state. Cancelling an already-cancelled registration succeeds with already_cancelled=true. A rejected registration cannot be cancelled.
// @Tags registration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.CancelRequest false "Optional cancellation reason"
// @Success 200 {object} helpers.APIResponse "data is a CancelResponse"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the owner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (registration already disposed)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/{registrationID} [delete]
func (c *RegistrationController) Cancel(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if registrationID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing registrationID")
		return
	}
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}

	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req CancelRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !helpers.DecodeAndValidate(w, r, &req) {
			return
		}
	}

	already, err := c.Service.Cancel(r.Context(), registrationID, playerID, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "registration not found")
			return
		}
		if errors.Is(err, domain.ErrForbidden) {
			helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "forbidden")
			return
		}
		if errors.Is(err, domain.ErrInvalidState) {
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "registration cannot be cancelled from its current status")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CancelResponse{
		RegistrationID:   registrationID,
		AlreadyCancelled: already,
	})
}

// GetStats godoc
// @Summary Get the caller's registration stats
// @Description Returns per-status registration counts and the remaining quota slots for the caller.
// @Tags registration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is a PlayerRegistrationStats"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registration/stats [get]
func (c *RegistrationController) GetStats(w http.ResponseWriter, r *http.Request) {
	playerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	stats, err := c.Service.GetStats(r.Context(), playerID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, stats)
}
