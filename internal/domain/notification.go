package domain

import "context"

// ReviewNotification carries the facts of a committed disposition to the
// notification dispatcher.
type ReviewNotification struct {
	RegistrationID string
	Action         ReviewAction
	ReviewerID     string
	Note           string
}

// NotificationDispatcher delivers review outcome notifications. Dispatch is
// fire-and-forget from the review engine's perspective: it runs after the
// review transaction commits and its errors are logged, never propagated.
type NotificationDispatcher interface {
	DispatchReviewNotification(ctx context.Context, n *ReviewNotification) error
}
