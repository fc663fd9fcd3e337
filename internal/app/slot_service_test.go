package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"bpdiary/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeSlotRepo keeps slots in memory. updateErr makes every Update fail;
// failUpdates fails only that many.
type fakeSlotRepo struct {
	mu          sync.Mutex
	slots       map[int64]domain.TimeSlot
	nextID      int64
	seeded      bool
	updateErr   error
	failUpdates int
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: map[int64]domain.TimeSlot{}}
}

func (r *fakeSlotRepo) List(_ context.Context) ([]domain.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TimeSlot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.TimeSlot) int {
		if d := a.ReferenceTime.Minutes() - b.ReferenceTime.Minutes(); d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (r *fakeSlotRepo) Get(_ context.Context, id int64) (*domain.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSlotRepo) GetByName(_ context.Context, name string) (*domain.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeSlotRepo) Create(_ context.Context, slot domain.TimeSlot) (*domain.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(slot), nil
}

func (r *fakeSlotRepo) create(slot domain.TimeSlot) *domain.TimeSlot {
	r.nextID++
	slot.ID = r.nextID
	r.slots[slot.ID] = slot
	return &slot
}

func (r *fakeSlotRepo) Update(_ context.Context, slot domain.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.failUpdates > 0 {
		r.failUpdates--
		return errors.New("disk full")
	}
	if _, ok := r.slots[slot.ID]; !ok {
		return domain.ErrSlotNotFound
	}
	r.slots[slot.ID] = slot
	return nil
}

func (r *fakeSlotRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, id)
	return nil
}

func (r *fakeSlotRepo) SeedDefaults(_ context.Context, slots []domain.TimeSlot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seeded {
		return false, nil
	}
	for _, s := range slots {
		r.create(s)
	}
	r.seeded = true
	return true, nil
}

// fakeScheduler records scheduled reminders and fails on demand.
type fakeScheduler struct {
	mu          sync.Mutex
	pending     map[string]domain.Reminder
	delivered   []domain.DeliveredReminder
	removed     []string
	seq         int
	permErr     error
	scheduleErr error
	cancelErr   error
	cancelled   []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: map[string]domain.Reminder{}}
}

func (f *fakeScheduler) RequestPermission(_ context.Context) error { return f.permErr }

func (f *fakeScheduler) Schedule(_ context.Context, title, body string, at domain.TimeOfDay) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	f.seq++
	id := fmt.Sprintf("rem-%d", f.seq)
	f.pending[id] = domain.Reminder{ID: id, Title: title, Body: body, At: at}
	return id, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	for _, id := range ids {
		delete(f.pending, id)
		f.cancelled = append(f.cancelled, id)
	}
	return nil
}

func (f *fakeScheduler) Pending(_ context.Context) ([]domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Reminder, 0, len(f.pending))
	for _, r := range f.pending {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeScheduler) Delivered(_ context.Context, from, to time.Time) ([]domain.DeliveredReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveredReminder
	for _, d := range f.delivered {
		if !d.DeliveredAt.Before(from) && !d.DeliveredAt.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeScheduler) RemoveDelivered(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ids...)
	return nil
}

func (f *fakeScheduler) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func newSlotFixture(t *testing.T) (*SlotService, *fakeSlotRepo, *fakeScheduler) {
	t.Helper()
	repo := newFakeSlotRepo()
	sched := newFakeScheduler()
	return NewSlotService(repo, sched, nil), repo, sched
}

func slotNamed(t *testing.T, svc *SlotService, name string) domain.TimeSlot {
	t.Helper()
	slots, err := svc.List(context.Background())
	require.NoError(t, err)
	for _, s := range slots {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("slot %q not found", name)
	return domain.TimeSlot{}
}

func TestSlotService_SeedDefaultsOnce(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	ctx := context.Background()

	seeded, err := svc.SeedDefaultsIfFirstLaunch(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = svc.SeedDefaultsIfFirstLaunch(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	slots, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, []string{"Morning", "Afternoon", "Evening"}, []string{slots[0].Name, slots[1].Name, slots[2].Name})
	for _, s := range slots {
		assert.False(t, s.TrackingEnabled)
		assert.Nil(t, s.ReminderID)
	}
}

func TestSlotService_SeedDefaultsConcurrent(t *testing.T) {
	svc, _, _ := newSlotFixture(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SeedDefaultsIfFirstLaunch(context.Background())
		}()
	}
	wg.Wait()

	slots, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestSlotService_SeedAfterUserDeletedAll(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	ctx := context.Background()
	_, err := svc.SeedDefaultsIfFirstLaunch(ctx)
	require.NoError(t, err)

	slots, _ := svc.List(ctx)
	for _, s := range slots {
		require.NoError(t, svc.Delete(ctx, s.ID))
	}
	seeded, err := svc.SeedDefaultsIfFirstLaunch(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
	slots, _ = svc.List(ctx)
	assert.Empty(t, slots)
}

func TestSlotService_Create(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	ctx := context.Background()

	slot, err := svc.Create(ctx, "  Night ", domain.TimeOfDay{Hour: 22, Minute: 30})
	require.NoError(t, err)
	assert.Equal(t, "Night", slot.Name)
	assert.Equal(t, domain.DefaultReminderMessage, slot.ReminderMessage)
	assert.False(t, slot.TrackingEnabled)
	assert.Nil(t, slot.ReminderID)
}

func TestSlotService_CreateDuplicateName(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	ctx := context.Background()
	_, err := svc.SeedDefaultsIfFirstLaunch(ctx)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 9})
	assert.ErrorIs(t, err, domain.ErrDuplicateSlotName)

	slots, _ := svc.List(ctx)
	assert.Len(t, slots, 3)
	assert.Equal(t, domain.TimeOfDay{Hour: 8}, slotNamed(t, svc, "Morning").ReferenceTime)
}

func TestSlotService_CreateInvalid(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	tests := []struct {
		name string
		at   domain.TimeOfDay
	}{
		{"", domain.TimeOfDay{Hour: 9}},
		{"   ", domain.TimeOfDay{Hour: 9}},
		{strings.Repeat("x", 65), domain.TimeOfDay{Hour: 9}},
		{"Late", domain.TimeOfDay{Hour: 24}},
		{"Odd", domain.TimeOfDay{Hour: 1, Minute: 60}},
	}
	for _, tc := range tests {
		_, err := svc.Create(context.Background(), tc.name, tc.at)
		assert.ErrorIs(t, err, domain.ErrInvalidSlot, "name=%q at=%v", tc.name, tc.at)
	}
}

func TestSlotService_EnableDisableTracking(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, err := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	require.NoError(t, err)

	on, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)
	assert.True(t, on.TrackingEnabled)
	require.NotNil(t, on.ReminderID)
	pending, _ := sched.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "Morning Reminder", pending[0].Title)
	assert.Equal(t, domain.DefaultReminderMessage, pending[0].Body)
	assert.Equal(t, domain.TimeOfDay{Hour: 8}, pending[0].At)

	again, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)
	assert.Equal(t, *on.ReminderID, *again.ReminderID)
	assert.Equal(t, 1, sched.pendingCount())

	off, err := svc.SetTracking(ctx, slot.ID, false)
	require.NoError(t, err)
	assert.False(t, off.TrackingEnabled)
	assert.Nil(t, off.ReminderID)
	assert.Zero(t, sched.pendingCount())
}

func TestSlotService_DisableClearsEvenIfCancelFails(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	_, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)

	sched.cancelErr = errors.New("scheduler offline")
	off, err := svc.SetTracking(ctx, slot.ID, false)
	require.NoError(t, err)
	assert.False(t, off.TrackingEnabled)
	assert.Nil(t, off.ReminderID)

	stored, err := svc.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.TrackingEnabled)
	assert.Nil(t, stored.ReminderID)
}

func TestSlotService_EnableFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeScheduler)
		wantErr error
	}{
		{"permission denied", func(f *fakeScheduler) { f.permErr = errors.New("no") }, domain.ErrPermissionDenied},
		{"schedule fails", func(f *fakeScheduler) { f.scheduleErr = errors.New("full") }, domain.ErrSchedulingFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, sched := newSlotFixture(t)
			ctx := context.Background()
			slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
			tc.setup(sched)

			_, err := svc.SetTracking(ctx, slot.ID, true)
			assert.ErrorIs(t, err, tc.wantErr)

			stored, _ := svc.Get(ctx, slot.ID)
			assert.False(t, stored.TrackingEnabled)
			assert.Nil(t, stored.ReminderID)
			assert.Zero(t, sched.pendingCount())
		})
	}
}

func TestSlotService_EnablePersistFailureCancelsReminder(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})

	repo.updateErr = errors.New("disk full")
	_, err := svc.SetTracking(ctx, slot.ID, true)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Zero(t, sched.pendingCount())
}

func TestSlotService_EnableCancelsLeftoverReminder(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	stale, _ := sched.Schedule(ctx, "Morning Reminder", "x", slot.ReferenceTime)
	slot.ReminderID = &stale
	require.NoError(t, repo.Update(ctx, *slot))

	on, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)
	require.NotNil(t, on.ReminderID)
	assert.NotEqual(t, stale, *on.ReminderID)
	assert.Contains(t, sched.cancelled, stale)
	assert.Equal(t, 1, sched.pendingCount())
}

func TestSlotService_EnableLeftoverClearedWhenScheduleFails(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	stale, _ := sched.Schedule(ctx, "Morning Reminder", "x", slot.ReferenceTime)
	slot.ReminderID = &stale
	require.NoError(t, repo.Update(ctx, *slot))

	sched.scheduleErr = errors.New("rejected")
	_, err := svc.SetTracking(ctx, slot.ID, true)
	assert.ErrorIs(t, err, domain.ErrSchedulingFailure)

	stored, _ := svc.Get(ctx, slot.ID)
	assert.False(t, stored.TrackingEnabled)
	assert.Nil(t, stored.ReminderID)
	assert.Zero(t, sched.pendingCount())
}

func TestSlotService_UpdatePersistFailureRestoresReminder(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	on, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)
	oldID := *on.ReminderID

	repo.failUpdates = 1
	_, err = svc.UpdateTime(ctx, slot.ID, domain.TimeOfDay{Hour: 9})
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	stored, _ := svc.Get(ctx, slot.ID)
	assert.Equal(t, domain.TimeOfDay{Hour: 8}, stored.ReferenceTime)
	assert.True(t, stored.TrackingEnabled)
	require.NotNil(t, stored.ReminderID)
	assert.NotEqual(t, oldID, *stored.ReminderID)

	pending, _ := sched.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, *stored.ReminderID, pending[0].ID)
	assert.Equal(t, domain.TimeOfDay{Hour: 8}, pending[0].At)
}

func TestSlotService_UpdatePersistFailureLeavesNoOrphan(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	_, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)

	repo.updateErr = errors.New("disk full")
	_, err = svc.Rename(ctx, slot.ID, "Early")
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Zero(t, sched.pendingCount())

	// The stored slot still claims a reminder; reconciliation re-arms it.
	repo.updateErr = nil
	fixed, err := svc.ReconcileReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, 1, sched.pendingCount())
	assert.Equal(t, "Morning", slotNamed(t, svc, "Morning").Name)
}

func TestSlotService_ReconcileLogsFailedCancel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo, sched := newFakeSlotRepo(), newFakeScheduler()
	svc := NewSlotService(repo, sched, zap.New(core))
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Evening", domain.TimeOfDay{Hour: 20})
	live, _ := sched.Schedule(ctx, "Evening Reminder", "x", slot.ReferenceTime)
	slot.ReminderID = &live
	require.NoError(t, repo.Update(ctx, *slot))

	sched.cancelErr = errors.New("offline")
	fixed, err := svc.ReconcileReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Nil(t, slotNamed(t, svc, "Evening").ReminderID)

	entries := logs.FilterMessage("cancel reminder failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, live, entries[0].ContextMap()["reminder_id"])
}

func TestSlotService_UpdateTimeReschedules(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	on, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)
	oldID := *on.ReminderID

	moved, err := svc.UpdateTime(ctx, slot.ID, domain.TimeOfDay{Hour: 7, Minute: 15})
	require.NoError(t, err)
	assert.Equal(t, domain.TimeOfDay{Hour: 7, Minute: 15}, moved.ReferenceTime)
	assert.True(t, moved.TrackingEnabled)
	require.NotNil(t, moved.ReminderID)
	assert.NotEqual(t, oldID, *moved.ReminderID)

	pending, _ := sched.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.TimeOfDay{Hour: 7, Minute: 15}, pending[0].At)
	assert.Contains(t, sched.cancelled, oldID)
}

func TestSlotService_UpdateTimeRescheduleFailureUntracks(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Evening", domain.TimeOfDay{Hour: 20})
	_, err := svc.SetTracking(ctx, slot.ID, true)
	require.NoError(t, err)

	sched.scheduleErr = errors.New("rejected")
	moved, err := svc.UpdateTime(ctx, slot.ID, domain.TimeOfDay{Hour: 21})
	assert.ErrorIs(t, err, domain.ErrSchedulingFailure)
	require.NotNil(t, moved)
	assert.False(t, moved.TrackingEnabled)
	assert.Nil(t, moved.ReminderID)

	stored, _ := svc.Get(ctx, slot.ID)
	assert.Equal(t, domain.TimeOfDay{Hour: 21}, stored.ReferenceTime)
	assert.False(t, stored.TrackingEnabled)
	assert.Nil(t, stored.ReminderID)
	assert.Zero(t, sched.pendingCount())
}

func TestSlotService_UpdateTimeUntracked(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Evening", domain.TimeOfDay{Hour: 20})

	moved, err := svc.UpdateTime(ctx, slot.ID, domain.TimeOfDay{Hour: 19, Minute: 45})
	require.NoError(t, err)
	assert.Equal(t, domain.TimeOfDay{Hour: 19, Minute: 45}, moved.ReferenceTime)
	assert.Zero(t, sched.pendingCount())
}

func TestSlotService_RenameDuplicate(t *testing.T) {
	svc, _, _ := newSlotFixture(t)
	ctx := context.Background()
	_, _ = svc.SeedDefaultsIfFirstLaunch(ctx)
	evening := slotNamed(t, svc, "Evening")

	_, err := svc.Rename(ctx, evening.ID, "Morning")
	assert.ErrorIs(t, err, domain.ErrDuplicateSlotName)

	renamed, err := svc.Rename(ctx, evening.ID, "Bedtime")
	require.NoError(t, err)
	assert.Equal(t, "Bedtime", renamed.Name)
}

func TestSlotService_SetReminderMessageReschedules(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	_, _ = svc.SetTracking(ctx, slot.ID, true)

	_, err := svc.SetReminderMessage(ctx, slot.ID, "Cuff on, feet flat.")
	require.NoError(t, err)
	pending, _ := sched.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "Cuff on, feet flat.", pending[0].Body)

	reset, err := svc.SetReminderMessage(ctx, slot.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultReminderMessage, reset.ReminderMessage)
}

func TestSlotService_Delete(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	on, _ := svc.SetTracking(ctx, slot.ID, true)

	require.NoError(t, svc.Delete(ctx, slot.ID))
	assert.Contains(t, sched.cancelled, *on.ReminderID)
	assert.Zero(t, sched.pendingCount())

	_, err := svc.Get(ctx, slot.ID)
	assert.ErrorIs(t, err, domain.ErrSlotNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, slot.ID), domain.ErrSlotNotFound)
}

func TestSlotService_DeleteKeepsSlotWhenCancelFails(t *testing.T) {
	svc, _, sched := newSlotFixture(t)
	ctx := context.Background()
	slot, _ := svc.Create(ctx, "Morning", domain.TimeOfDay{Hour: 8})
	_, _ = svc.SetTracking(ctx, slot.ID, true)

	sched.cancelErr = errors.New("offline")
	err := svc.Delete(ctx, slot.ID)
	assert.ErrorIs(t, err, domain.ErrSchedulingFailure)

	stored, err := svc.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.TrackingEnabled)
}

func TestSlotService_ReconcileReminders(t *testing.T) {
	svc, repo, sched := newSlotFixture(t)
	ctx := context.Background()
	_, _ = svc.SeedDefaultsIfFirstLaunch(ctx)
	morning := slotNamed(t, svc, "Morning")
	evening := slotNamed(t, svc, "Evening")

	// Morning claims tracking with a reminder the scheduler lost.
	lost := "gone"
	morning.TrackingEnabled = true
	morning.ReminderID = &lost
	require.NoError(t, repo.Update(ctx, morning))
	// Evening is untracked but still points at a live reminder.
	live, _ := sched.Schedule(ctx, "Evening Reminder", "x", evening.ReferenceTime)
	evening.ReminderID = &live
	require.NoError(t, repo.Update(ctx, evening))

	fixed, err := svc.ReconcileReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	m := slotNamed(t, svc, "Morning")
	require.NotNil(t, m.ReminderID)
	assert.NotEqual(t, lost, *m.ReminderID)
	assert.Nil(t, slotNamed(t, svc, "Evening").ReminderID)
	assert.Equal(t, 1, sched.pendingCount())

	fixed, err = svc.ReconcileReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
