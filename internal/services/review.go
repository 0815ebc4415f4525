package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sportsreg/internal/domain"
)

type reviewService struct {
	regRepo        domain.RegistrationRepository
	logRepo        domain.ReviewLogRepository
	eventRepo      domain.EventRepository
	notifier       domain.NotificationDispatcher
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewReviewService creates a ReviewService. notifier may be nil; then no
// notifications are dispatched.
func NewReviewService(
	regRepo domain.RegistrationRepository,
	logRepo domain.ReviewLogRepository,
	eventRepo domain.EventRepository,
	notifier domain.NotificationDispatcher,
	logger *slog.Logger,
	timeout time.Duration,
) domain.ReviewService {
	return &reviewService{
		regRepo:        regRepo,
		logRepo:        logRepo,
		eventRepo:      eventRepo,
		notifier:       notifier,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *reviewService) Review(ctx context.Context, registrationID string, action domain.ReviewAction, reviewerID string, note string) (*domain.Disposition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !action.Valid() {
		return nil, domain.ErrInvalidInput
	}

	disp, err := s.reviewOne(ctx, registrationID, action, reviewerID, note)
	if err != nil {
		return nil, err
	}
	s.dispatchNotification(ctx, registrationID, action, reviewerID, note)
	return disp, nil
}

func (s *reviewService) BatchReview(ctx context.Context, registrationIDs []string, action domain.ReviewAction, reviewerID string, note string) (*domain.BatchReviewResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !action.Valid() {
		return nil, domain.ErrInvalidInput
	}

	result := &domain.BatchReviewResult{Total: len(registrationIDs)}
	for _, id := range registrationIDs {
		// Each item runs in its own transaction: one item's failure never
		// blocks the rest, and capacity accounting sees earlier commits.
		if _, err := s.reviewOne(ctx, id, action, reviewerID, note); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, domain.BatchReviewError{
				RegistrationID: id,
				Message:        reviewErrorMessage(err),
			})
			continue
		}
		result.SuccessCount++
		s.dispatchNotification(ctx, id, action, reviewerID, note)
	}
	return result, nil
}

// reviewOne applies one disposition inside a single transaction.
//
// The audit entry is appended before the status update so the two are atomic
// together. The capacity re-check runs after the tentative update: on
// overflow the row is reverted to requested and the transaction is still
// committed, so the audit entry recording the failed attempt persists while
// the registration stays reviewable.
func (s *reviewService) reviewOne(ctx context.Context, registrationID string, action domain.ReviewAction, reviewerID string, note string) (*domain.Disposition, error) {
	tx, err := s.regRepo.BeginReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin review transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	reg, err := tx.GetForUpdate(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if !reg.CanReview() {
		return nil, domain.ErrInvalidState
	}

	newStatus := action.TargetStatus()
	now := time.Now()

	var notePtr *string
	if note != "" {
		notePtr = &note
	}

	entry := &domain.ReviewLogEntry{
		RegistrationID: registrationID,
		ReviewerID:     reviewerID,
		Action:         action,
		OldStatus:      reg.Status,
		NewStatus:      newStatus,
		Note:           notePtr,
		PerformedAt:    now,
	}
	if err := tx.AppendLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("append review log: %w", err)
	}

	if err := tx.UpdateDisposition(ctx, registrationID, newStatus, reviewerID, notePtr, now); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}

	if action == domain.ActionApprove {
		// Lock the event row before counting so concurrent approvals at the
		// capacity boundary serialise: exactly one of two racing approvals
		// can observe a free slot.
		event, err := tx.GetEventForUpdate(ctx, reg.EventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("get event: %w", err)
		}
		approved, err := tx.CountApprovedByEvent(ctx, reg.EventID)
		if err != nil {
			return nil, fmt.Errorf("count approved registrations: %w", err)
		}
		if event.MaxParticipants != nil && approved > *event.MaxParticipants {
			if err := tx.RevertDisposition(ctx, registrationID); err != nil {
				return nil, fmt.Errorf("revert registration: %w", err)
			}
			// Commit so the audit entry for the failed attempt survives.
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit review transaction: %w", err)
			}
			committed = true
			return nil, domain.ErrCapacityExceeded
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review transaction: %w", err)
	}
	committed = true

	return &domain.Disposition{
		RegistrationID: registrationID,
		NewStatus:      newStatus,
		ReviewerID:     reviewerID,
		DisposedAt:     now,
	}, nil
}

// dispatchNotification runs after a successful commit. Failures are logged
// and never surfaced to the caller.
func (s *reviewService) dispatchNotification(ctx context.Context, registrationID string, action domain.ReviewAction, reviewerID, note string) {
	if s.notifier == nil {
		return
	}
	n := &domain.ReviewNotification{
		RegistrationID: registrationID,
		Action:         action,
		ReviewerID:     reviewerID,
		Note:           note,
	}
	if err := s.notifier.DispatchReviewNotification(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "review notification dispatch failed",
			"registration_id", registrationID, "action", string(action), "err", err)
	}
}

func (s *reviewService) GetWorkflow(ctx context.Context, registrationID string) (*domain.ReviewWorkflow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}

	history, err := s.logRepo.ListByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	if history == nil {
		history = []*domain.ReviewLogEntry{}
	}

	return &domain.ReviewWorkflow{
		RegistrationID: registrationID,
		CurrentStatus:  reg.Status,
		RequestedAt:    reg.RequestedAt,
		DisposedAt:     reg.DisposedAt,
		ReviewNote:     reg.ReviewNote,
		History:        history,
		CanApprove:     reg.CanReview(),
		CanReject:      reg.CanReview(),
		CanCancel:      reg.CanCancel(),
	}, nil
}

func (s *reviewService) HistoryFor(ctx context.Context, registrationID string) ([]*domain.ReviewLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	history, err := s.logRepo.ListByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	if history == nil {
		history = []*domain.ReviewLogEntry{}
	}
	return history, nil
}

func (s *reviewService) ListPending(ctx context.Context, status *domain.RegistrationStatus, eventID string, params domain.PaginationParams) ([]*domain.RegistrationDetail, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	// Admin listings default to the review queue.
	filter := domain.StatusRequested
	if status != nil {
		filter = *status
	}

	regs, total, err := s.regRepo.ListByStatus(ctx, filter, eventID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	eventsByID := make(map[string]*domain.Event)
	result := make([]*domain.RegistrationDetail, 0, len(regs))
	for _, reg := range regs {
		ev, ok := eventsByID[reg.EventID]
		if !ok {
			ev, err = s.eventRepo.GetByID(ctx, reg.EventID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, 0, fmt.Errorf("get event: %w", err)
			}
			eventsByID[reg.EventID] = ev
		}
		result = append(result, &domain.RegistrationDetail{Registration: reg, Event: ev})
	}
	return result, total, nil
}

func (s *reviewService) ReviewStats(ctx context.Context) (*domain.StatusCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	counts, err := s.regRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count registrations by status: %w", err)
	}
	return counts, nil
}

// reviewErrorMessage maps review errors to the per-item message reported in
// batch results.
func reviewErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "registration not found"
	case errors.Is(err, domain.ErrInvalidState):
		return "registration is not in a reviewable state"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "event has reached its participant limit"
	default:
		return err.Error()
	}
}
