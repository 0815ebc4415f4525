package postgres

import (
	"context"
	"database/sql"

	"sportsreg/internal/domain"
)

type reviewLogRepository struct {
	DB *sql.DB
}

// NewReviewLogRepository creates a ReviewLogRepository for the read side of
// the audit trail. Appends happen inside the review transaction.
func NewReviewLogRepository(db *sql.DB) domain.ReviewLogRepository {
	return &reviewLogRepository{DB: db}
}

func (r *reviewLogRepository) ListByRegistrationID(ctx context.Context, registrationID string) ([]*domain.ReviewLogEntry, error) {
	query := `
		SELECT id, registration_id, reviewer_id, action, old_status, new_status, note, performed_at
		FROM registration_review_logs
		WHERE registration_id = $1
		ORDER BY performed_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ReviewLogEntry
	for rows.Next() {
		entry := &domain.ReviewLogEntry{}
		var action, oldStatus, newStatus string
		if err := rows.Scan(&entry.ID, &entry.RegistrationID, &entry.ReviewerID,
			&action, &oldStatus, &newStatus, &entry.Note, &entry.PerformedAt); err != nil {
			return nil, err
		}
		entry.Action = domain.ReviewAction(action)
		entry.OldStatus = domain.RegistrationStatus(oldStatus)
		entry.NewStatus = domain.RegistrationStatus(newStatus)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.ReviewLogEntry{}
	}
	return entries, nil
}
