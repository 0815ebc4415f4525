package domain

import (
	"context"
	"time"
)

// ReviewAction is the admin disposition applied to a requested registration.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// Valid reports whether a is a known review action.
func (a ReviewAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// TargetStatus returns the status a registration moves to under this action.
func (a ReviewAction) TargetStatus() RegistrationStatus {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// ReviewLogEntry is an immutable record of one administrative disposition
// attempt. Entries are appended inside the review transaction and never
// updated or deleted. Player cancellations are recorded on the registration
// row instead, not here.
// swagger:model ReviewLogEntry
type ReviewLogEntry struct {
	ID             string             `json:"id"`
	RegistrationID string             `json:"registration_id"`
	ReviewerID     string             `json:"reviewer_id"`
	Action         ReviewAction       `json:"action"`
	OldStatus      RegistrationStatus `json:"old_status"`
	NewStatus      RegistrationStatus `json:"new_status"`
	Note           *string            `json:"note,omitempty"`
	PerformedAt    time.Time          `json:"performed_at"`
}

// Disposition is the outcome of a successful single review.
// swagger:model Disposition
type Disposition struct {
	RegistrationID string             `json:"registration_id"`
	NewStatus      RegistrationStatus `json:"new_status"`
	ReviewerID     string             `json:"reviewer_id"`
	DisposedAt     time.Time          `json:"disposed_at"`
}

// BatchReviewError describes one failed item in a batch review.
// swagger:model BatchReviewError
type BatchReviewError struct {
	RegistrationID string `json:"registration_id"`
	Message        string `json:"message"`
}

// BatchReviewResult summarises a batch review. Partial success is expected
// and reported, not treated as a failure.
// swagger:model BatchReviewResult
type BatchReviewResult struct {
	SuccessCount int                `json:"success_count"`
	FailedCount  int                `json:"failed_count"`
	Errors       []BatchReviewError `json:"errors"`
	Total        int                `json:"total"`
}

// ReviewWorkflow is the read-side view of a registration's review state:
// current status, full history, and the actions currently permitted.
// swagger:model ReviewWorkflow
type ReviewWorkflow struct {
	RegistrationID string             `json:"registration_id"`
	CurrentStatus  RegistrationStatus `json:"current_status"`
	RequestedAt    time.Time          `json:"requested_at"`
	DisposedAt     *time.Time         `json:"disposed_at,omitempty"`
	ReviewNote     *string            `json:"review_note,omitempty"`
	History        []*ReviewLogEntry  `json:"history"`
	CanApprove     bool               `json:"can_approve"`
	CanReject      bool               `json:"can_reject"`
	CanCancel      bool               `json:"can_cancel"`
}

// ReviewTx is the transactional store a single review runs against.
// Implementations must make GetForUpdate lock the registration row and
// GetEventForUpdate lock the event row, so concurrent approvals at the
// capacity boundary serialise.
type ReviewTx interface {
	GetForUpdate(ctx context.Context, registrationID string) (*Registration, error)
	GetEventForUpdate(ctx context.Context, eventID string) (*Event, error)
	CountApprovedByEvent(ctx context.Context, eventID string) (int, error)
	// UpdateDisposition tentatively applies the review outcome to the row.
	UpdateDisposition(ctx context.Context, registrationID string, status RegistrationStatus, reviewerID string, note *string, disposedAt time.Time) error
	// RevertDisposition returns the row to requested, clearing reviewer id,
	// disposed-at, and note.
	RevertDisposition(ctx context.Context, registrationID string) error
	AppendLog(ctx context.Context, entry *ReviewLogEntry) error
	Commit() error
	Rollback() error
}

// ReviewLogRepository defines read access to the audit trail outside the
// review transaction.
type ReviewLogRepository interface {
	ListByRegistrationID(ctx context.Context, registrationID string) ([]*ReviewLogEntry, error)
}

// RegistrationDetail joins a registration with its player and event for
// admin listings.
// swagger:model RegistrationDetail
type RegistrationDetail struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// ReviewService defines admin-facing review operations.
type ReviewService interface {
	// Review applies a single disposition inside one transaction. On a late
	// capacity violation the registration is reverted to requested and
	// ErrCapacityExceeded returned; the audit entry for the attempt persists.
	Review(ctx context.Context, registrationID string, action ReviewAction, reviewerID string, note string) (*Disposition, error)
	// BatchReview processes each id independently, one transaction per item.
	BatchReview(ctx context.Context, registrationIDs []string, action ReviewAction, reviewerID string, note string) (*BatchReviewResult, error)
	GetWorkflow(ctx context.Context, registrationID string) (*ReviewWorkflow, error)
	HistoryFor(ctx context.Context, registrationID string) ([]*ReviewLogEntry, error)
	ListPending(ctx context.Context, status *RegistrationStatus, eventID string, params PaginationParams) ([]*RegistrationDetail, int, error)
	ReviewStats(ctx context.Context) (*StatusCounts, error)
}
