package services

import (
	"context"
	"fmt"

	"sportsreg/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and
// template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer}
}

// SendReviewOutcome sends the registration review outcome email using the
// "registration_reviewed" template.
func (s *emailService) SendReviewOutcome(ctx context.Context, data *domain.ReviewOutcomeEmailData) error {
	if data == nil {
		return fmt.Errorf("review outcome data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("registration_reviewed", data)
	if err != nil {
		return fmt.Errorf("failed to render registration_reviewed template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send review outcome email: %w", err)
	}
	return nil
}
