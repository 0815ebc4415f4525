package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportsreg/internal/domain"
)

// Human-readable denial reasons returned by the eligibility check.
const (
	reasonWindowClosed  = "registration for this event is closed"
	reasonDuplicate     = "you already hold an active registration for this event"
	reasonQuotaExceeded = "you have reached the maximum number of active registrations"
	reasonCapacityFull  = "this event has reached its participant limit"
)

type registrationService struct {
	regRepo        domain.RegistrationRepository
	eventRepo      domain.EventRepository
	maxPerPlayer   int
	contextTimeout time.Duration
}

// NewRegistrationService creates a RegistrationService. maxPerPlayer is the
// quota of concurrently active registrations a player may hold.
func NewRegistrationService(
	regRepo domain.RegistrationRepository,
	eventRepo domain.EventRepository,
	maxPerPlayer int,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		regRepo:        regRepo,
		eventRepo:      eventRepo,
		maxPerPlayer:   maxPerPlayer,
		contextTimeout: timeout,
	}
}

// CheckEligibility evaluates the registration rules in order; the first
// failing rule wins so the caller always gets one actionable reason.
func (s *registrationService) CheckEligibility(ctx context.Context, playerID, eventID string) (*domain.EligibilityResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if !event.OpenForRegistrationAt(time.Now()) {
		return &domain.EligibilityResult{CanRegister: false, Reason: reasonWindowClosed}, nil
	}

	existing, err := s.regRepo.GetByEventAndPlayer(ctx, eventID, playerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if existing != nil && existing.IsActive() {
		return &domain.EligibilityResult{CanRegister: false, Reason: reasonDuplicate}, nil
	}

	active, err := s.regRepo.CountActiveByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("count active registrations: %w", err)
	}
	if active >= s.maxPerPlayer {
		return &domain.EligibilityResult{CanRegister: false, Reason: reasonQuotaExceeded}, nil
	}

	approved, err := s.regRepo.CountApprovedByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count approved registrations: %w", err)
	}
	if !event.CanAdmit(approved) {
		return &domain.EligibilityResult{CanRegister: false, Reason: reasonCapacityFull}, nil
	}

	return &domain.EligibilityResult{CanRegister: true}, nil
}

func (s *registrationService) Register(ctx context.Context, playerID, eventID string) (*domain.Registration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	check, err := s.CheckEligibility(ctx, playerID, eventID)
	if err != nil {
		return nil, false, err
	}
	if !check.CanRegister {
		return nil, false, &domain.EligibilityError{Reason: check.Reason}
	}

	now := time.Now()

	// A terminal record for the same pair is reactivated rather than
	// duplicated: (player, event) is the identity key.
	existing, err := s.regRepo.GetByEventAndPlayer(ctx, eventID, playerID)
	if err == nil {
		return s.reactivate(ctx, existing, now)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("get registration: %w", err)
	}

	reg := domain.NewRegistration(playerID, eventID, now)
	if err := s.regRepo.Create(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			// Lost a race with a concurrent register for the same pair.
			existing, gerr := s.regRepo.GetByEventAndPlayer(ctx, eventID, playerID)
			if gerr != nil {
				return nil, false, fmt.Errorf("get registration after conflict: %w", gerr)
			}
			return s.reactivate(ctx, existing, now)
		}
		return nil, false, fmt.Errorf("create registration: %w", err)
	}
	return reg, true, nil
}

func (s *registrationService) reactivate(ctx context.Context, existing *domain.Registration, now time.Time) (*domain.Registration, bool, error) {
	if existing.IsActive() {
		return nil, false, &domain.EligibilityError{Reason: reasonDuplicate}
	}
	if err := s.regRepo.Reactivate(ctx, existing.ID, now); err != nil {
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			// The row left its terminal state between the read and the
			// guarded write, so an active registration already exists.
			return nil, false, &domain.EligibilityError{Reason: reasonDuplicate}
		}
		return nil, false, fmt.Errorf("reactivate registration: %w", err)
	}
	reg := *existing
	reg.Status = domain.StatusRequested
	reg.RequestedAt = now
	reg.DisposedAt = nil
	reg.CancelledAt = nil
	reg.CancelReason = nil
	reg.ReviewerID = nil
	reg.ReviewNote = nil
	reg.UpdatedAt = now
	return &reg, false, nil
}

func (s *registrationService) Cancel(ctx context.Context, registrationID, playerID, reason string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("get registration: %w", err)
	}
	if reg.PlayerID != playerID {
		return false, domain.ErrForbidden
	}
	if reg.Status == domain.StatusCancelled {
		// Idempotent from the caller's perspective.
		return true, nil
	}
	if !reg.CanCancel() {
		return false, domain.ErrInvalidState
	}

	if err := s.regRepo.MarkCancelled(ctx, registrationID, time.Now(), reason); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			// A concurrent write moved the row out of a cancellable state
			// after the read above; re-read to classify the outcome.
			current, gerr := s.regRepo.GetByID(ctx, registrationID)
			if gerr != nil {
				if errors.Is(gerr, domain.ErrNotFound) {
					return false, domain.ErrNotFound
				}
				return false, fmt.Errorf("get registration after conflict: %w", gerr)
			}
			if current.Status == domain.StatusCancelled {
				return true, nil
			}
			return false, domain.ErrInvalidState
		}
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	return false, nil
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, playerID string, status *domain.RegistrationStatus) ([]*domain.RegistrationWithEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	regs, err := s.regRepo.ListByPlayerID(ctx, playerID, status)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if len(regs) == 0 {
		return []*domain.RegistrationWithEvent{}, nil
	}

	eventsByID := make(map[string]*domain.Event)
	result := make([]*domain.RegistrationWithEvent, 0, len(regs))
	for _, reg := range regs {
		ev, ok := eventsByID[reg.EventID]
		if !ok {
			ev, err = s.eventRepo.GetByID(ctx, reg.EventID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// Event removed but registration preserved; skip the entry.
					continue
				}
				return nil, fmt.Errorf("get event for registration: %w", err)
			}
			eventsByID[reg.EventID] = ev
		}
		result = append(result, &domain.RegistrationWithEvent{Registration: reg, Event: ev})
	}
	return result, nil
}

func (s *registrationService) ListAvailableEvents(ctx context.Context, playerID string) ([]*domain.AvailableEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, err := s.eventRepo.ListOpenForRegistration(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}

	result := make([]*domain.AvailableEvent, 0, len(events))
	for _, ev := range events {
		approved, err := s.regRepo.CountApprovedByEvent(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("count approved registrations: %w", err)
		}
		var slots *int
		if ev.MaxParticipants != nil {
			remaining := *ev.MaxParticipants - approved
			if remaining < 0 {
				remaining = 0
			}
			slots = &remaining
		}
		registered := false
		if existing, err := s.regRepo.GetByEventAndPlayer(ctx, ev.ID, playerID); err == nil {
			registered = existing.IsActive()
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get registration: %w", err)
		}
		result = append(result, &domain.AvailableEvent{
			Event:             ev,
			CurrentApproved:   approved,
			AvailableSlots:    slots,
			AlreadyRegistered: registered,
		})
	}
	return result, nil
}

func (s *registrationService) GetStats(ctx context.Context, playerID string) (*domain.PlayerRegistrationStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stats, err := s.regRepo.StatsByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	remaining := s.maxPerPlayer - (stats.RequestedCount + stats.ApprovedCount)
	if remaining < 0 {
		remaining = 0
	}
	stats.RemainingSlots = remaining
	return stats, nil
}
