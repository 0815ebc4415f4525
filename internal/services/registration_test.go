package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsreg/internal/domain"
)

// fakeRegistrationRepo is an in-memory RegistrationRepository for tests.
type fakeRegistrationRepo struct {
	byID        map[string]*domain.Registration
	nextID      int
	createErr   error  // if set, Create returns this error once and clears it
	getMisses   int    // number of GetByEventAndPlayer calls that miss before rows become visible
	beforeWrite func() // runs before Reactivate/MarkCancelled apply, simulating a concurrent commit
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		byID:   make(map[string]*domain.Registration),
		nextID: 1,
	}
}

func (f *fakeRegistrationRepo) add(reg *domain.Registration) *domain.Registration {
	reg.ID = fmt.Sprintf("reg-%d", f.nextID)
	f.nextID++
	f.byID[reg.ID] = reg
	return reg
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *domain.Registration) error {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	for _, r := range f.byID {
		if r.PlayerID == reg.PlayerID && r.EventID == reg.EventID {
			return domain.ErrDuplicateRegistration
		}
	}
	f.add(reg)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	if r, ok := f.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) GetByEventAndPlayer(ctx context.Context, eventID, playerID string) (*domain.Registration, error) {
	if f.getMisses > 0 {
		f.getMisses--
		return nil, domain.ErrNotFound
	}
	for _, r := range f.byID {
		if r.EventID == eventID && r.PlayerID == playerID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) Reactivate(ctx context.Context, id string, requestedAt time.Time) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	r, ok := f.byID[id]
	// Guarded like the real update: only a terminal row is reactivated.
	if !ok || r.IsActive() {
		return domain.ErrDuplicateRegistration
	}
	r.Status = domain.StatusRequested
	r.RequestedAt = requestedAt
	r.DisposedAt = nil
	r.CancelledAt = nil
	r.CancelReason = nil
	r.ReviewerID = nil
	r.ReviewNote = nil
	r.UpdatedAt = requestedAt
	return nil
}

func (f *fakeRegistrationRepo) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time, reason string) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	r, ok := f.byID[id]
	// Guarded like the real update: only requested or approved rows cancel.
	if !ok || !r.CanCancel() {
		return domain.ErrInvalidState
	}
	r.Status = domain.StatusCancelled
	r.CancelledAt = &cancelledAt
	r.CancelReason = &reason
	r.UpdatedAt = cancelledAt
	return nil
}

func (f *fakeRegistrationRepo) CountActiveByPlayer(ctx context.Context, playerID string) (int, error) {
	count := 0
	for _, r := range f.byID {
		if r.PlayerID == playerID && r.IsActive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationRepo) CountApprovedByEvent(ctx context.Context, eventID string) (int, error) {
	count := 0
	for _, r := range f.byID {
		if r.EventID == eventID && r.Status == domain.StatusApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationRepo) ListByPlayerID(ctx context.Context, playerID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	var out []*domain.Registration
	for _, r := range f.byID {
		if r.PlayerID != playerID {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRegistrationRepo) ListByStatus(ctx context.Context, status domain.RegistrationStatus, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	var out []*domain.Registration
	for _, r := range f.byID {
		if r.Status != status {
			continue
		}
		if eventID != "" && r.EventID != eventID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeRegistrationRepo) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	counts := &domain.StatusCounts{}
	for _, r := range f.byID {
		switch r.Status {
		case domain.StatusRequested:
			counts.Requested++
		case domain.StatusApproved:
			counts.Approved++
		case domain.StatusCancelled:
			counts.Cancelled++
		case domain.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

func (f *fakeRegistrationRepo) StatsByPlayer(ctx context.Context, playerID string) (*domain.PlayerRegistrationStats, error) {
	stats := &domain.PlayerRegistrationStats{}
	for _, r := range f.byID {
		if r.PlayerID != playerID {
			continue
		}
		stats.Total++
		switch r.Status {
		case domain.StatusRequested:
			stats.RequestedCount++
		case domain.StatusApproved:
			stats.ApprovedCount++
		case domain.StatusCancelled:
			stats.CancelledCount++
		case domain.StatusRejected:
			stats.RejectedCount++
		}
	}
	return stats, nil
}

func (f *fakeRegistrationRepo) BeginReview(ctx context.Context) (domain.ReviewTx, error) {
	return nil, fmt.Errorf("not supported by fakeRegistrationRepo")
}

// fakeEventRepo is an in-memory EventRepository for tests.
type fakeEventRepo struct {
	byID map[string]*domain.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[string]*domain.Event)}
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListOpenForRegistration(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range f.byID {
		if e.OpenForRegistrationAt(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func openEvent(id string, max *int) *domain.Event {
	return &domain.Event{
		ID:               id,
		Name:             "Event " + id,
		Date:             time.Now().Add(48 * time.Hour),
		MaxParticipants:  max,
		RegistrationOpen: true,
	}
}

func TestRegistrationService_CheckEligibility(t *testing.T) {
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name       string
		setup      func(regs *fakeRegistrationRepo, events *fakeEventRepo)
		eventID    string
		wantOK     bool
		wantReason string
		wantErr    error
	}{
		{
			name: "event not found",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
			},
			eventID: "ev-missing",
			wantErr: domain.ErrNotFound,
		},
		{
			name: "registration closed",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				ev := openEvent("ev-1", intPtr(10))
				ev.RegistrationOpen = false
				events.byID["ev-1"] = ev
			},
			eventID:    "ev-1",
			wantOK:     false,
			wantReason: reasonWindowClosed,
		},
		{
			name: "registration window ended",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				ev := openEvent("ev-1", intPtr(10))
				ev.RegistrationEnd = &past
				events.byID["ev-1"] = ev
			},
			eventID:    "ev-1",
			wantOK:     false,
			wantReason: reasonWindowClosed,
		},
		{
			name: "duplicate active registration",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-1"] = openEvent("ev-1", intPtr(10))
				regs.add(domain.NewRegistration("player-1", "ev-1", time.Now()))
			},
			eventID:    "ev-1",
			wantOK:     false,
			wantReason: reasonDuplicate,
		},
		{
			name: "cancelled registration does not count as duplicate",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-1"] = openEvent("ev-1", intPtr(10))
				reg := domain.NewRegistration("player-1", "ev-1", time.Now())
				reg.Status = domain.StatusCancelled
				regs.add(reg)
			},
			eventID: "ev-1",
			wantOK:  true,
		},
		{
			name: "quota exhausted",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-9"] = openEvent("ev-9", intPtr(10))
				for i := 0; i < 3; i++ {
					regs.add(domain.NewRegistration("player-1", fmt.Sprintf("ev-%d", i), time.Now()))
				}
			},
			eventID:    "ev-9",
			wantOK:     false,
			wantReason: reasonQuotaExceeded,
		},
		{
			name: "terminal registrations do not consume quota",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-9"] = openEvent("ev-9", intPtr(10))
				for i := 0; i < 3; i++ {
					reg := domain.NewRegistration("player-1", fmt.Sprintf("ev-%d", i), time.Now())
					reg.Status = domain.StatusRejected
					regs.add(reg)
				}
			},
			eventID: "ev-9",
			wantOK:  true,
		},
		{
			name: "event at capacity",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-1"] = openEvent("ev-1", intPtr(2))
				for i := 0; i < 2; i++ {
					reg := domain.NewRegistration(fmt.Sprintf("other-%d", i), "ev-1", time.Now())
					reg.Status = domain.StatusApproved
					regs.add(reg)
				}
			},
			eventID:    "ev-1",
			wantOK:     false,
			wantReason: reasonCapacityFull,
		},
		{
			name: "unlimited event ignores capacity",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-1"] = openEvent("ev-1", nil)
				for i := 0; i < 50; i++ {
					reg := domain.NewRegistration(fmt.Sprintf("other-%d", i), "ev-1", time.Now())
					reg.Status = domain.StatusApproved
					regs.add(reg)
				}
			},
			eventID: "ev-1",
			wantOK:  true,
		},
		{
			name: "all rules pass",
			setup: func(regs *fakeRegistrationRepo, events *fakeEventRepo) {
				events.byID["ev-1"] = openEvent("ev-1", intPtr(10))
			},
			eventID: "ev-1",
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := newFakeRegistrationRepo()
			events := newFakeEventRepo()
			tt.setup(regs, events)
			svc := NewRegistrationService(regs, events, 3, 5*time.Second)

			result, err := svc.CheckEligibility(ctx, "player-1", tt.eventID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, result.CanRegister)
			assert.Equal(t, tt.wantReason, result.Reason)
		})
	}
}

func TestRegistrationService_Register_CreatesNew(t *testing.T) {
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(10))
	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	reg, created, err := svc.Register(ctx, "player-1", "ev-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusRequested, reg.Status)
	assert.Equal(t, "player-1", reg.PlayerID)
	assert.Equal(t, "ev-1", reg.EventID)
	assert.NotEmpty(t, reg.ID)
}

func TestRegistrationService_Register_ReactivatesCancelled(t *testing.T) {
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(10))

	cancelledAt := time.Now().Add(-time.Hour)
	reason := "changed my mind"
	old := domain.NewRegistration("player-1", "ev-1", time.Now().Add(-2*time.Hour))
	old.Status = domain.StatusCancelled
	old.CancelledAt = &cancelledAt
	old.CancelReason = &reason
	regs.add(old)

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	reg, created, err := svc.Register(ctx, "player-1", "ev-1")
	require.NoError(t, err)
	assert.False(t, created, "reactivation must not report a new record")
	assert.Equal(t, old.ID, reg.ID, "the existing row is reused")
	assert.Equal(t, domain.StatusRequested, reg.Status)
	assert.Nil(t, reg.CancelledAt)
	assert.Nil(t, reg.CancelReason)
	assert.Nil(t, reg.ReviewerID)
	assert.Nil(t, reg.ReviewNote)

	stored := regs.byID[old.ID]
	assert.Equal(t, domain.StatusRequested, stored.Status)
}

func TestRegistrationService_Register_DuplicateActive(t *testing.T) {
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(10))
	regs.add(domain.NewRegistration("player-1", "ev-1", time.Now()))

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	_, _, err := svc.Register(ctx, "player-1", "ev-1")
	var eligErr *domain.EligibilityError
	require.ErrorAs(t, err, &eligErr)
	assert.Equal(t, reasonDuplicate, eligErr.Reason)
}

func TestRegistrationService_Register_LostCreateRace(t *testing.T) {
	// The eligibility check saw no existing row, but Create hits the unique
	// constraint because a concurrent request inserted first. The service
	// refetches and reactivates if the winner's row is terminal.
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(10))

	winner := domain.NewRegistration("player-1", "ev-1", time.Now())
	winner.Status = domain.StatusCancelled
	regs.add(winner)

	// The winner's row is invisible to the two reads before Create, so the
	// service goes down the insert path and hits the unique constraint.
	regs.getMisses = 2
	regs.createErr = domain.ErrDuplicateRegistration

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	reg, created, err := svc.Register(ctx, "player-1", "ev-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, reg.ID)
	assert.Equal(t, domain.StatusRequested, reg.Status)
}

func TestRegistrationService_Register_LosesReactivationRace(t *testing.T) {
	// The terminal row left its state between the read and the guarded
	// reactivation write (a concurrent register reactivated it and a review
	// approved it). The write must not clobber the newer disposition.
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(10))

	old := domain.NewRegistration("player-1", "ev-1", time.Now().Add(-2*time.Hour))
	old.Status = domain.StatusCancelled
	regs.add(old)

	disposedAt := time.Now()
	reviewerID := "admin-1"
	regs.beforeWrite = func() {
		r := regs.byID[old.ID]
		r.Status = domain.StatusApproved
		r.DisposedAt = &disposedAt
		r.ReviewerID = &reviewerID
		r.CancelledAt = nil
	}

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	_, _, err := svc.Register(ctx, "player-1", "ev-1")
	var eligErr *domain.EligibilityError
	require.ErrorAs(t, err, &eligErr)
	assert.Equal(t, reasonDuplicate, eligErr.Reason)

	stored := regs.byID[old.ID]
	assert.Equal(t, domain.StatusApproved, stored.Status)
	require.NotNil(t, stored.ReviewerID, "disposition metadata must survive the lost race")
	assert.Equal(t, reviewerID, *stored.ReviewerID)
}

func TestRegistrationService_Cancel(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		status      domain.RegistrationStatus
		playerID    string
		wantAlready bool
		wantErr     error
	}{
		{name: "cancel requested", status: domain.StatusRequested, playerID: "player-1"},
		{name: "cancel approved", status: domain.StatusApproved, playerID: "player-1"},
		{name: "already cancelled is idempotent", status: domain.StatusCancelled, playerID: "player-1", wantAlready: true},
		{name: "rejected cannot be cancelled", status: domain.StatusRejected, playerID: "player-1", wantErr: domain.ErrInvalidState},
		{name: "not the owner", status: domain.StatusRequested, playerID: "player-2", wantErr: domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := newFakeRegistrationRepo()
			events := newFakeEventRepo()
			reg := domain.NewRegistration("player-1", "ev-1", time.Now())
			reg.Status = tt.status
			regs.add(reg)

			svc := NewRegistrationService(regs, events, 3, 5*time.Second)

			already, err := svc.Cancel(ctx, reg.ID, tt.playerID, "no longer available")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlready, already)
			assert.Equal(t, domain.StatusCancelled, regs.byID[reg.ID].Status)
		})
	}
}

func TestRegistrationService_Cancel_LosesRaceToReject(t *testing.T) {
	// An admin reject commits between the ownership read and the cancel
	// write. The guarded update touches nothing and the reject stands.
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	reg := domain.NewRegistration("player-1", "ev-1", time.Now())
	regs.add(reg)
	regs.beforeWrite = func() {
		regs.byID[reg.ID].Status = domain.StatusRejected
	}

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	_, err := svc.Cancel(ctx, reg.ID, "player-1", "schedule conflict")
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StatusRejected, regs.byID[reg.ID].Status,
		"a committed reject must not be overwritten by a cancel")
}

func TestRegistrationService_Cancel_LosesRaceToCancel(t *testing.T) {
	// Two cancels race; the loser observes the already-cancelled outcome
	// instead of an error.
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	reg := domain.NewRegistration("player-1", "ev-1", time.Now())
	regs.add(reg)
	cancelledAt := time.Now()
	regs.beforeWrite = func() {
		r := regs.byID[reg.ID]
		r.Status = domain.StatusCancelled
		r.CancelledAt = &cancelledAt
	}

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	already, err := svc.Cancel(ctx, reg.ID, "player-1", "schedule conflict")
	require.NoError(t, err)
	assert.True(t, already)
}

func TestRegistrationService_Cancel_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewRegistrationService(newFakeRegistrationRepo(), newFakeEventRepo(), 3, 5*time.Second)

	_, err := svc.Cancel(ctx, "reg-missing", "player-1", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationService_ListAvailableEvents(t *testing.T) {
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()
	events.byID["ev-1"] = openEvent("ev-1", intPtr(3))
	events.byID["ev-2"] = openEvent("ev-2", nil)

	approved := domain.NewRegistration("other-1", "ev-1", time.Now())
	approved.Status = domain.StatusApproved
	regs.add(approved)
	regs.add(domain.NewRegistration("player-1", "ev-1", time.Now()))

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	result, err := svc.ListAvailableEvents(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, result, 2)

	byEvent := make(map[string]*domain.AvailableEvent)
	for _, ae := range result {
		byEvent[ae.Event.ID] = ae
	}

	ev1 := byEvent["ev-1"]
	require.NotNil(t, ev1)
	assert.Equal(t, 1, ev1.CurrentApproved)
	require.NotNil(t, ev1.AvailableSlots)
	assert.Equal(t, 2, *ev1.AvailableSlots)
	assert.True(t, ev1.AlreadyRegistered)

	ev2 := byEvent["ev-2"]
	require.NotNil(t, ev2)
	assert.Nil(t, ev2.AvailableSlots, "unlimited event reports no slot count")
	assert.False(t, ev2.AlreadyRegistered)
}

func TestRegistrationService_GetStats(t *testing.T) {
	ctx := context.Background()
	regs := newFakeRegistrationRepo()
	events := newFakeEventRepo()

	requested := domain.NewRegistration("player-1", "ev-1", time.Now())
	regs.add(requested)
	approved := domain.NewRegistration("player-1", "ev-2", time.Now())
	approved.Status = domain.StatusApproved
	regs.add(approved)
	cancelled := domain.NewRegistration("player-1", "ev-3", time.Now())
	cancelled.Status = domain.StatusCancelled
	regs.add(cancelled)

	svc := NewRegistrationService(regs, events, 3, 5*time.Second)

	stats, err := svc.GetStats(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.RequestedCount)
	assert.Equal(t, 1, stats.ApprovedCount)
	assert.Equal(t, 1, stats.CancelledCount)
	assert.Equal(t, 1, stats.RemainingSlots, "two active registrations leave one slot")
}
