package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sportsreg/internal/domain"
)

const eventColumns = `id, name, date, start_time, end_time, introduction, max_participants,
		registration_open, registration_start, registration_end`

type eventRepository struct {
	DB *sql.DB
}

// NewEventRepository creates a read-only EventRepository. Event CRUD is
// owned by another part of the system.
func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{DB: db}
}

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	ev := &domain.Event{}
	err := row.Scan(&ev.ID, &ev.Name, &ev.Date, &ev.StartTime, &ev.EndTime,
		&ev.Introduction, &ev.MaxParticipants, &ev.RegistrationOpen,
		&ev.RegistrationStart, &ev.RegistrationEnd)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	ev, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) ListOpenForRegistration(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE registration_open = TRUE
			AND (registration_start IS NULL OR registration_start <= $1)
			AND (registration_end IS NULL OR registration_end >= $1)
		ORDER BY date ASC, start_time ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}
