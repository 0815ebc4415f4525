package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sportsreg/internal/delivery/http/helpers"
	"sportsreg/internal/delivery/http/middleware"
	"sportsreg/internal/domain"
)

// Review batches are bounded to keep a single request from holding the
// review queue for too long.
const maxBatchSize = 100

type ReviewController struct {
	Logger  *slog.Logger
	Service domain.ReviewService
}

func NewReviewController(logger *slog.Logger, svc domain.ReviewService) *ReviewController {
	return &ReviewController{
		Logger:  logger,
		Service: svc,
	}
}

// PendingListResponse is the data payload of the admin registration listing.
type PendingListResponse struct {
	Items      []*domain.RegistrationDetail `json:"items"`
	Pagination helpers.PaginationMeta       `json:"pagination"`
}

// ListPending godoc
// @Summary List registrations for review
// @Description Returns a paginated list of registrations, defaulting to the requested (pending) queue. Filterable by status and event.
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (requested|approved|cancelled|rejected); defaults to requested"
// @Param event_id query string false "Filter by event ID (UUID)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data is a PendingListResponse"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations [get]
func (c *ReviewController) ListPending(w http.ResponseWriter, r *http.Request) {
	var status *domain.RegistrationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.RegistrationStatus(s)
		if !st.Valid() {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid status filter")
			return
		}
		status = &st
	}
	eventID := r.URL.Query().Get("event_id")
	if eventID != "" && !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid event_id filter")
		return
	}
	params := helpers.ParsePagination(r)

	items, total, err := c.Service.ListPending(r.Context(), status, eventID, params)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, PendingListResponse{
		Items:      items,
		Pagination: helpers.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}

// ReviewRequest is the request body for POST /api/admin/registrations/{registrationID}/review.
type ReviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

// Validate implements helpers.Validator.
func (r *ReviewRequest) Validate() []string {
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return []string{"action is required"}
	}
	if !domain.ReviewAction(r.Action).Valid() {
		return []string{"action must be approve or reject"}
	}
	if len(r.Note) > 500 {
		return []string{"note must be at most 500 characters"}
	}
	return nil
}

// Review godoc
// @Summary Review a registration
// @Description Approves or rejects a requested registration. An approval that would exceed the event's participant limit fails with 409 capacity_exceeded; the registration stays requested and the attempt is recorded in the audit trail.
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.ReviewRequest true "Review action and optional note"
// @Success 200 {object} helpers.APIResponse "data is a Disposition"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict or capacity_exceeded"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations/{registrationID}/review [post]
func (c *ReviewController) Review(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}

	var req ReviewRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reviewerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	disp, err := c.Service.Review(r.Context(), registrationID, domain.ReviewAction(req.Action), reviewerID, req.Note)
	if err != nil {
		c.writeReviewError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, disp)
}

// BatchReviewRequest is the request body for POST /api/admin/registrations/batch-review.
type BatchReviewRequest struct {
	RegistrationIDs []string `json:"registration_ids"`
	Action          string   `json:"action"`
	Note            string   `json:"note"`
}

// Validate implements helpers.Validator.
func (r *BatchReviewRequest) Validate() []string {
	var errs []string
	if len(r.RegistrationIDs) == 0 {
		errs = append(errs, "registration_ids must not be empty")
	}
	if len(r.RegistrationIDs) > maxBatchSize {
		errs = append(errs, "registration_ids must contain at most 100 items")
	}
	for _, id := range r.RegistrationIDs {
		if !uuidRegex.MatchString(id) {
			errs = append(errs, "registration_ids must contain valid UUIDs")
			break
		}
	}
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		errs = append(errs, "action is required")
	} else if !domain.ReviewAction(r.Action).Valid() {
		errs = append(errs, "action must be approve or reject")
	}
	if len(r.Note) > 500 {
		errs = append(errs, "note must be at most 500 characters")
	}
	return errs
}

// BatchReview godoc
// @Summary Review multiple registrations
// @Description Applies one action to several registrations. Items are processed independently; a failing item is reported in the result and does not block the rest. Always responds 200 with per-item outcomes.
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.BatchReviewRequest true "Registration IDs, action, and optional note"
// @Success 200 {object} helpers.APIResponse "data is a BatchReviewResult"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations/batch-review [post]
func (c *ReviewController) BatchReview(w http.ResponseWriter, r *http.Request) {
	var req BatchReviewRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reviewerID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	result, err := c.Service.BatchReview(r.Context(), req.RegistrationIDs, domain.ReviewAction(req.Action), reviewerID, req.Note)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid review action")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// GetWorkflow godoc
// @Summary Get a registration's review workflow
// @Description Returns the registration's current status, full review history in chronological order, and the actions currently permitted.
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is a ReviewWorkflow"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations/{registrationID}/workflow [get]
func (c *ReviewController) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}

	workflow, err := c.Service.GetWorkflow(r.Context(), registrationID)
	if err != nil {
		c.writeReviewError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, workflow)
}

// GetHistory godoc
// @Summary Get a registration's review history
// @Description Returns the registration's audit trail ordered by performed-at ascending. Empty for a registration that has never been reviewed.
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is an array of ReviewLogEntry"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations/{registrationID}/history [get]
func (c *ReviewController) GetHistory(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}

	history, err := c.Service.HistoryFor(r.Context(), registrationID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, history)
}

// GetStats godoc
// @Summary Get system-wide review stats
// @Description Returns registration counts per status across the whole system.
// @Tags review
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is a StatusCounts"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/registrations/stats [get]
func (c *ReviewController) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := c.Service.ReviewStats(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, counts)
}

func (c *ReviewController) writeReviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "registration not found")
	case errors.Is(err, domain.ErrInvalidState):
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "registration is not in a reviewable state")
	case errors.Is(err, domain.ErrCapacityExceeded):
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeCapacityExceeded, "event has reached its participant limit")
	case errors.Is(err, domain.ErrInvalidInput):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid review action")
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
	}
}
