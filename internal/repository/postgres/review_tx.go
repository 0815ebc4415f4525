package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sportsreg/internal/domain"
)

// reviewTx implements domain.ReviewTx over one *sql.Tx. Row locks taken by
// GetForUpdate and GetEventForUpdate are held until Commit or Rollback, which
// serialises concurrent reviews touching the same rows.
type reviewTx struct {
	tx *sql.Tx
}

func (t *reviewTx) GetForUpdate(ctx context.Context, registrationID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	reg, err := scanRegistration(t.tx.QueryRowContext(ctx, query, registrationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (t *reviewTx) GetEventForUpdate(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `
		SELECT id, name, date, start_time, end_time, introduction, max_participants,
			registration_open, registration_start, registration_end
		FROM events
		WHERE id = $1
		FOR UPDATE
	`
	ev, err := scanEvent(t.tx.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (t *reviewTx) CountApprovedByEvent(ctx context.Context, eventID string) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`
	var count int
	err := t.tx.QueryRowContext(ctx, query, eventID, string(domain.StatusApproved)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (t *reviewTx) UpdateDisposition(ctx context.Context, registrationID string, status domain.RegistrationStatus, reviewerID string, note *string, disposedAt time.Time) error {
	query := `
		UPDATE registrations
		SET status = $1, reviewer_id = $2, review_note = $3, disposed_at = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := t.tx.ExecContext(ctx, query,
		string(status), reviewerID, note, disposedAt, disposedAt, registrationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *reviewTx) AppendLog(ctx context.Context, entry *domain.ReviewLogEntry) error {
	query := `
		INSERT INTO registration_review_logs
			(registration_id, reviewer_id, action, old_status, new_status, note, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return t.tx.QueryRowContext(ctx, query,
		entry.RegistrationID, entry.ReviewerID, string(entry.Action),
		string(entry.OldStatus), string(entry.NewStatus), entry.Note, entry.PerformedAt).
		Scan(&entry.ID)
}

func (t *reviewTx) RevertDisposition(ctx context.Context, registrationID string) error {
	query := `
		UPDATE registrations
		SET status = $1, reviewer_id = NULL, disposed_at = NULL, review_note = NULL,
			updated_at = NOW()
		WHERE id = $2
	`
	_, err := t.tx.ExecContext(ctx, query, string(domain.StatusRequested), registrationID)
	return err
}

func (t *reviewTx) Commit() error {
	return t.tx.Commit()
}

func (t *reviewTx) Rollback() error {
	return t.tx.Rollback()
}
