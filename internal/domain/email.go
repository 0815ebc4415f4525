package domain

import "context"

// Mailer sends a single email. Implementations may use AWS SES or a no-op
// sender for development.
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders a named template into subject, html, and
// text bodies.
type EmailTemplateRenderer interface {
	Render(templateName string, data interface{}) (subject, htmlBody, textBody string, err error)
}

// ReviewOutcomeEmailData is the payload for the registration_reviewed
// template.
type ReviewOutcomeEmailData struct {
	Email      string
	PlayerName string
	EventName  string
	Approved   bool
	Note       string
}

// EmailService sends application emails.
type EmailService interface {
	SendReviewOutcome(ctx context.Context, data *ReviewOutcomeEmailData) error
}
