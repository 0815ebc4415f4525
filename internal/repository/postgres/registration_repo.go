package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"sportsreg/internal/domain"
)

const registrationColumns = `id, player_id, event_id, status, requested_at, disposed_at,
		cancelled_at, cancel_reason, reviewer_id, review_note, created_at, updated_at`

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository creates a RegistrationRepository backed by postgres.
func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{DB: db}
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (player_id, event_id, status, requested_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		reg.PlayerID, reg.EventID, string(reg.Status), reg.RequestedAt, reg.CreatedAt, reg.UpdatedAt).
		Scan(&reg.ID)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique violation on (player_id, event_id).
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicateRegistration
		}
		return err
	}
	return nil
}

func scanRegistration(row interface{ Scan(...any) error }) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var status string
	err := row.Scan(&reg.ID, &reg.PlayerID, &reg.EventID, &status, &reg.RequestedAt,
		&reg.DisposedAt, &reg.CancelledAt, &reg.CancelReason, &reg.ReviewerID,
		&reg.ReviewNote, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	return reg, nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByEventAndPlayer(ctx context.Context, eventID, playerID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND player_id = $2`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, eventID, playerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) Reactivate(ctx context.Context, id string, requestedAt time.Time) error {
	// The status predicate guards against a concurrent write that moved the
	// row out of a terminal state after the caller read it.
	query := `
		UPDATE registrations
		SET status = $1, requested_at = $2, disposed_at = NULL, cancelled_at = NULL,
			cancel_reason = NULL, reviewer_id = NULL, review_note = NULL, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`
	res, err := r.DB.ExecContext(ctx, query, string(domain.StatusRequested), requestedAt, requestedAt, id,
		string(domain.StatusCancelled), string(domain.StatusRejected))
	if err != nil {
		return err
	}
	// Rows are never deleted, so zero rows means the row is no longer
	// terminal: another registration for the same pair is already active.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrDuplicateRegistration
	}
	return nil
}

func (r *registrationRepository) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time, reason string) error {
	// Cancelling races admin review; the status predicate makes whichever
	// write commits first win instead of letting the cancel overwrite a
	// committed disposition.
	query := `
		UPDATE registrations
		SET status = $1, cancelled_at = $2, cancel_reason = $3, updated_at = $4
		WHERE id = $5 AND status IN ($6, $7)
	`
	res, err := r.DB.ExecContext(ctx, query, string(domain.StatusCancelled), cancelledAt, reason, cancelledAt, id,
		string(domain.StatusRequested), string(domain.StatusApproved))
	if err != nil {
		return err
	}
	// Zero rows: the row is missing or not in a cancellable state; the
	// service re-reads to tell the cases apart.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *registrationRepository) CountActiveByPlayer(ctx context.Context, playerID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM registrations
		WHERE player_id = $1 AND status IN ($2, $3)
	`
	var count int
	err := r.DB.QueryRowContext(ctx, query, playerID,
		string(domain.StatusRequested), string(domain.StatusApproved)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *registrationRepository) CountApprovedByEvent(ctx context.Context, eventID string) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`
	var count int
	err := r.DB.QueryRowContext(ctx, query, eventID, string(domain.StatusApproved)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *registrationRepository) ListByPlayerID(ctx context.Context, playerID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE player_id = $1`
	args := []any{playerID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, nil
}

func (r *registrationRepository) ListByStatus(ctx context.Context, status domain.RegistrationStatus, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	countQuery := `SELECT COUNT(*) FROM registrations WHERE status = $1`
	countArgs := []any{string(status)}
	if eventID != "" {
		countQuery += ` AND event_id = $2`
		countArgs = append(countArgs, eventID)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE status = $1`
	args := []any{string(status)}
	if eventID != "" {
		query += ` AND event_id = $2 ORDER BY requested_at DESC LIMIT $3 OFFSET $4`
		args = append(args, eventID, params.PageSize, params.Offset())
	} else {
		query += ` ORDER BY requested_at DESC LIMIT $2 OFFSET $3`
		args = append(args, params.PageSize, params.Offset())
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, total, nil
}

func (r *registrationRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'requested'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM registrations
	`
	counts := &domain.StatusCounts{}
	err := r.DB.QueryRowContext(ctx, query).
		Scan(&counts.Requested, &counts.Approved, &counts.Cancelled, &counts.Rejected)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *registrationRepository) StatsByPlayer(ctx context.Context, playerID string) (*domain.PlayerRegistrationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'requested'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM registrations
		WHERE player_id = $1
	`
	stats := &domain.PlayerRegistrationStats{}
	err := r.DB.QueryRowContext(ctx, query, playerID).
		Scan(&stats.Total, &stats.RequestedCount, &stats.ApprovedCount,
			&stats.CancelledCount, &stats.RejectedCount)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *registrationRepository) BeginReview(ctx context.Context) (domain.ReviewTx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &reviewTx{tx: tx}, nil
}
