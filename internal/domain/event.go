package domain

import (
	"context"
	"time"
)

// Event represents a scheduled competition event. The registration workflow
// reads events but never mutates them; event CRUD lives outside this service.
// swagger:model Event
type Event struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Date              time.Time  `json:"date"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	Introduction      string     `json:"introduction,omitempty"`
	MaxParticipants   *int       `json:"max_participants,omitempty"`
	RegistrationOpen  bool       `json:"registration_open"`
	RegistrationStart *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time `json:"registration_end,omitempty"`
}

// CanAdmit reports whether one more approved registration fits under the
// event's participant limit. A nil MaxParticipants means unlimited.
func (e *Event) CanAdmit(approvedCount int) bool {
	if e.MaxParticipants == nil {
		return true
	}
	return approvedCount < *e.MaxParticipants
}

// OpenForRegistrationAt reports whether the event accepts new registrations
// at the given instant. Either window bound may be absent, meaning unbounded
// on that side.
func (e *Event) OpenForRegistrationAt(now time.Time) bool {
	if !e.RegistrationOpen {
		return false
	}
	if e.RegistrationStart != nil && now.Before(*e.RegistrationStart) {
		return false
	}
	if e.RegistrationEnd != nil && now.After(*e.RegistrationEnd) {
		return false
	}
	return true
}

// AvailableEvent is an open event annotated with capacity figures and the
// calling player's registration state.
// swagger:model AvailableEvent
type AvailableEvent struct {
	Event             *Event `json:"event"`
	CurrentApproved   int    `json:"current_approved"`
	AvailableSlots    *int   `json:"available_slots,omitempty"`
	AlreadyRegistered bool   `json:"already_registered"`
}

// EventRepository defines read access to events. Read-only from this
// service's perspective.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
	ListOpenForRegistration(ctx context.Context, now time.Time) ([]*Event, error)
}
