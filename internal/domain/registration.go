package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across the registration workflow. Services wrap
// them with context; the delivery layer maps them to HTTP status codes with
// errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidState          = errors.New("invalid state for this operation")
	ErrCapacityExceeded      = errors.New("event capacity exceeded")
	ErrDuplicateRegistration = errors.New("registration already exists")
	ErrInvalidInput          = errors.New("invalid input")
)

// EligibilityError is returned when a register request fails one of the
// eligibility rules. Reason is safe to show to the player.
type EligibilityError struct {
	Reason string
}

func (e *EligibilityError) Error() string {
	return e.Reason
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	// StatusRequested is the initial state; the registration awaits review.
	StatusRequested RegistrationStatus = "requested"
	// StatusApproved means an admin accepted the registration.
	StatusApproved RegistrationStatus = "approved"
	// StatusCancelled means the player withdrew. Reachable from requested
	// and approved.
	StatusCancelled RegistrationStatus = "cancelled"
	// StatusRejected means an admin declined the registration. Terminal for
	// the player; an admin review can still move it.
	StatusRejected RegistrationStatus = "rejected"
)

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Registration is a player's request to participate in an event. The pair
// (PlayerID, EventID) is unique; terminal registrations are reactivated in
// place rather than duplicated.
// swagger:model Registration
type Registration struct {
	ID           string             `json:"id"`
	PlayerID     string             `json:"player_id"`
	EventID      string             `json:"event_id"`
	Status       RegistrationStatus `json:"status"`
	RequestedAt  time.Time          `json:"requested_at"`
	DisposedAt   *time.Time         `json:"disposed_at,omitempty"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason *string            `json:"cancel_reason,omitempty"`
	ReviewerID   *string            `json:"reviewer_id,omitempty"`
	ReviewNote   *string            `json:"review_note,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewRegistration creates a registration in the requested state.
func NewRegistration(playerID, eventID string, now time.Time) *Registration {
	return &Registration{
		PlayerID:    playerID,
		EventID:     eventID,
		Status:      StatusRequested,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsActive reports whether the registration counts against the player's
// quota and the event's duplicate rule.
func (r *Registration) IsActive() bool {
	return r.Status == StatusRequested || r.Status == StatusApproved
}

// CanCancel reports whether the player may cancel the registration.
func (r *Registration) CanCancel() bool {
	return r.Status == StatusRequested || r.Status == StatusApproved
}

// CanReview reports whether an admin may approve or reject the registration.
// Only requested registrations are reviewable.
func (r *Registration) CanReview() bool {
	return r.Status == StatusRequested
}

// EligibilityResult is the verdict of the registration rules for a
// (player, event) pair. Reason is set only when CanRegister is false.
// swagger:model EligibilityResult
type EligibilityResult struct {
	CanRegister bool   `json:"can_register"`
	Reason      string `json:"reason,omitempty"`
}

// RegistrationWithEvent pairs a registration with its event for player-facing
// listings.
// swagger:model RegistrationWithEvent
type RegistrationWithEvent struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// PlayerRegistrationStats summarises a player's registrations per status.
// RemainingSlots is the unused portion of the active-registration quota.
// swagger:model PlayerRegistrationStats
type PlayerRegistrationStats struct {
	Total          int `json:"total"`
	RequestedCount int `json:"requested_count"`
	ApprovedCount  int `json:"approved_count"`
	CancelledCount int `json:"cancelled_count"`
	RejectedCount  int `json:"rejected_count"`
	RemainingSlots int `json:"remaining_slots"`
}

// StatusCounts is the system-wide registration count per status.
// swagger:model StatusCounts
type StatusCounts struct {
	Requested int `json:"requested"`
	Approved  int `json:"approved"`
	Cancelled int `json:"cancelled"`
	Rejected  int `json:"rejected"`
}

// RegistrationRepository defines persistence for registrations.
type RegistrationRepository interface {
	// Create inserts a new registration and fills in its ID. Returns
	// ErrDuplicateRegistration when a row for (player, event) already exists.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByEventAndPlayer(ctx context.Context, eventID, playerID string) (*Registration, error)
	// Reactivate returns a terminal registration to requested, clearing all
	// disposition and cancellation fields. The write only applies while the
	// row is still cancelled or rejected; otherwise it returns
	// ErrDuplicateRegistration.
	Reactivate(ctx context.Context, id string, requestedAt time.Time) error
	// MarkCancelled cancels a requested or approved registration. The write
	// only applies while the row is still in one of those states; otherwise
	// it returns ErrInvalidState.
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time, reason string) error
	// CountActiveByPlayer counts the player's requested and approved
	// registrations across all events.
	CountActiveByPlayer(ctx context.Context, playerID string) (int, error)
	CountApprovedByEvent(ctx context.Context, eventID string) (int, error)
	ListByPlayerID(ctx context.Context, playerID string, status *RegistrationStatus) ([]*Registration, error)
	// ListByStatus returns a page of registrations in the given status,
	// optionally filtered by event, plus the total match count.
	ListByStatus(ctx context.Context, status RegistrationStatus, eventID string, params PaginationParams) ([]*Registration, int, error)
	CountByStatus(ctx context.Context) (*StatusCounts, error)
	StatsByPlayer(ctx context.Context, playerID string) (*PlayerRegistrationStats, error)
	// BeginReview opens the transaction a review runs in.
	BeginReview(ctx context.Context) (ReviewTx, error)
}

// RegistrationService defines player-facing registration operations.
type RegistrationService interface {
	// CheckEligibility evaluates the registration rules in order and reports
	// the first failure. The capacity rule is advisory here; approval
	// re-checks it transactionally.
	CheckEligibility(ctx context.Context, playerID, eventID string) (*EligibilityResult, error)
	// Register creates or reactivates a registration. created is true when a
	// new row was inserted, false when a terminal registration was
	// reactivated.
	Register(ctx context.Context, playerID, eventID string) (reg *Registration, created bool, err error)
	// Cancel cancels the player's registration. alreadyCancelled is true
	// when the registration was cancelled before the call; that case is not
	// an error.
	Cancel(ctx context.Context, registrationID, playerID, reason string) (alreadyCancelled bool, err error)
	ListMyRegistrations(ctx context.Context, playerID string, status *RegistrationStatus) ([]*RegistrationWithEvent, error)
	ListAvailableEvents(ctx context.Context, playerID string) ([]*AvailableEvent, error)
	GetStats(ctx context.Context, playerID string) (*PlayerRegistrationStats, error)
}
