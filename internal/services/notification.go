package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sportsreg/internal/domain"
)

type notificationService struct {
	regRepo      domain.RegistrationRepository
	eventRepo    domain.EventRepository
	accountRepo  domain.AccountRepository
	emailService domain.EmailService
	logger       *slog.Logger
}

// NewNotificationService creates a NotificationDispatcher that emails the
// player about review outcomes. Delivery is best effort; the review workflow
// never depends on it.
func NewNotificationService(
	regRepo domain.RegistrationRepository,
	eventRepo domain.EventRepository,
	accountRepo domain.AccountRepository,
	emailService domain.EmailService,
	logger *slog.Logger,
) domain.NotificationDispatcher {
	return &notificationService{
		regRepo:      regRepo,
		eventRepo:    eventRepo,
		accountRepo:  accountRepo,
		emailService: emailService,
		logger:       logger,
	}
}

func (s *notificationService) DispatchReviewNotification(ctx context.Context, n *domain.ReviewNotification) error {
	reg, err := s.regRepo.GetByID(ctx, n.RegistrationID)
	if err != nil {
		return fmt.Errorf("get registration for notification: %w", err)
	}

	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("get event for notification: %w", err)
	}

	player, err := s.accountRepo.GetByID(ctx, reg.PlayerID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.logger.WarnContext(ctx, "player account missing, skipping notification",
				"registration_id", n.RegistrationID, "player_id", reg.PlayerID)
			return nil
		}
		return fmt.Errorf("get player for notification: %w", err)
	}

	if player.Email == "" {
		s.logger.InfoContext(ctx, "player has no email address, skipping notification",
			"registration_id", n.RegistrationID, "player_id", reg.PlayerID)
		return nil
	}

	data := &domain.ReviewOutcomeEmailData{
		Email:      player.Email,
		PlayerName: player.Name,
		EventName:  event.Name,
		Approved:   n.Action == domain.ActionApprove,
		Note:       n.Note,
	}
	if err := s.emailService.SendReviewOutcome(ctx, data); err != nil {
		return fmt.Errorf("send review outcome email: %w", err)
	}
	return nil
}
