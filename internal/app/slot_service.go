package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bpdiary/internal/domain"
	"bpdiary/internal/logger"

	"go.uber.org/zap"
)

// SlotService owns the time slots and keeps each slot's reminder in step
// with its settings. All mutations are serialised; the repository is the
// source of truth and is written on every change.
type SlotService struct {
	mu        sync.Mutex
	repo      domain.SlotRepository
	reminders domain.ReminderScheduler
	log       *zap.Logger
}

// NewSlotService creates a SlotService.
func NewSlotService(repo domain.SlotRepository, reminders domain.ReminderScheduler, log *zap.Logger) *SlotService {
	return &SlotService{repo: repo, reminders: reminders, log: logger.OrNop(log)}
}

// SlotPatch lists the fields an edit changes; nil fields are left alone.
type SlotPatch struct {
	Name            *string
	ReferenceTime   *domain.TimeOfDay
	ReminderMessage *string
}

// SeedDefaultsIfFirstLaunch inserts the default slots once per installation.
// It reports whether this call did the seeding.
func (s *SlotService) SeedDefaultsIfFirstLaunch(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeded, err := s.repo.SeedDefaults(ctx, domain.DefaultSlots())
	if err != nil {
		return false, persistErr(err)
	}
	if seeded {
		s.log.Info("seeded default time slots")
	}
	return seeded, nil
}

// List returns all slots ordered by reference time.
func (s *SlotService) List(ctx context.Context) ([]domain.TimeSlot, error) {
	slots, err := s.repo.List(ctx)
	if err != nil {
		return nil, persistErr(err)
	}
	return slots, nil
}

// Get returns one slot or ErrSlotNotFound.
func (s *SlotService) Get(ctx context.Context, id int64) (*domain.TimeSlot, error) {
	slot, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, persistErr(err)
	}
	if slot == nil {
		return nil, domain.ErrSlotNotFound
	}
	return slot, nil
}

// Create adds a slot. The name must be unique among existing slots.
func (s *SlotService) Create(ctx context.Context, name string, at domain.TimeOfDay) (*domain.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !at.Valid() {
		return nil, fmt.Errorf("%w: reference time out of range", domain.ErrInvalidSlot)
	}
	if err := s.ensureUnique(ctx, name, 0); err != nil {
		return nil, err
	}

	slot, err := s.repo.Create(ctx, domain.TimeSlot{
		Name:            name,
		ReferenceTime:   at,
		ReminderMessage: domain.DefaultReminderMessage,
	})
	if err != nil {
		return nil, persistErr(err)
	}
	s.log.Info("time slot created", zap.Int64("slot_id", slot.ID), zap.String("name", slot.Name))
	return slot, nil
}

// SetTracking turns the slot's reminder on or off.
//
// Enabling asks for notification permission and schedules the reminder; on
// any failure the slot stays untracked with no reminder and the error is
// returned. Disabling cancels the reminder on a best-effort basis and always
// clears the local reminder state.
func (s *SlotService) SetTracking(ctx context.Context, id int64, enabled bool) (*domain.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !enabled {
		s.dropReminder(ctx, slot)
		slot.TrackingEnabled = false
		if err := s.save(ctx, slot); err != nil {
			return nil, err
		}
		return slot, nil
	}

	if slot.TrackingEnabled && slot.HasReminder() {
		return slot, nil
	}

	if err := s.reminders.RequestPermission(ctx); err != nil {
		return nil, s.untrack(ctx, slot, fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err))
	}
	// An untracked slot can still reference a leftover reminder.
	leftover := s.dropReminder(ctx, slot)
	rid, err := s.schedule(ctx, slot)
	if err != nil {
		if leftover {
			if serr := s.save(ctx, slot); serr != nil {
				return nil, errors.Join(err, serr)
			}
		}
		return nil, s.untrack(ctx, slot, err)
	}

	slot.TrackingEnabled = true
	slot.ReminderID = &rid
	if err := s.save(ctx, slot); err != nil {
		s.dropReminder(ctx, slot)
		return nil, err
	}
	s.log.Info("reminder scheduled",
		zap.Int64("slot_id", slot.ID), zap.String("reminder_id", rid), zap.Stringer("at", slot.ReferenceTime))
	return slot, nil
}

// UpdateTime moves the slot's reference time. A scheduled reminder is
// cancelled and then re-scheduled at the new time. If the new reminder cannot
// be scheduled the slot keeps its new time but is left untracked, and
// ErrSchedulingFailure is returned so the user can re-enable it.
func (s *SlotService) UpdateTime(ctx context.Context, id int64, at domain.TimeOfDay) (*domain.TimeSlot, error) {
	return s.Update(ctx, id, SlotPatch{ReferenceTime: &at})
}

// Rename changes the slot's name, keeping names unique.
func (s *SlotService) Rename(ctx context.Context, id int64, name string) (*domain.TimeSlot, error) {
	return s.Update(ctx, id, SlotPatch{Name: &name})
}

// SetReminderMessage changes the reminder body. An empty message restores
// the default.
func (s *SlotService) SetReminderMessage(ctx context.Context, id int64, msg string) (*domain.TimeSlot, error) {
	return s.Update(ctx, id, SlotPatch{ReminderMessage: &msg})
}

// Update applies p to the slot. When a changed field is part of the
// reminder (name, time or message) an active reminder is replaced with the
// same failure policy as UpdateTime.
func (s *SlotService) Update(ctx context.Context, id int64, p SlotPatch) (*domain.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := *slot

	changed := false
	if p.Name != nil {
		name, err := cleanName(*p.Name)
		if err != nil {
			return nil, err
		}
		if name != slot.Name {
			if err := s.ensureUnique(ctx, name, slot.ID); err != nil {
				return nil, err
			}
			slot.Name = name
			changed = true
		}
	}
	if p.ReferenceTime != nil {
		if !p.ReferenceTime.Valid() {
			return nil, fmt.Errorf("%w: reference time out of range", domain.ErrInvalidSlot)
		}
		if *p.ReferenceTime != slot.ReferenceTime {
			slot.ReferenceTime = *p.ReferenceTime
			changed = true
		}
	}
	if p.ReminderMessage != nil {
		msg := strings.TrimSpace(*p.ReminderMessage)
		if msg == "" {
			msg = domain.DefaultReminderMessage
		}
		if msg != slot.ReminderMessage {
			slot.ReminderMessage = msg
			changed = true
		}
	}
	if !changed {
		return slot, nil
	}

	var schedErr error
	if slot.TrackingEnabled || slot.HasReminder() {
		if err := s.cancelCurrent(ctx, slot); err != nil {
			return nil, err
		}
		if slot.TrackingEnabled {
			rid, err := s.schedule(ctx, slot)
			if err != nil {
				slot.TrackingEnabled = false
				schedErr = err
				s.log.Warn("reschedule failed; slot untracked", zap.Int64("slot_id", slot.ID), zap.Error(err))
			} else {
				slot.ReminderID = &rid
			}
		}
	}

	if err := s.save(ctx, slot); err != nil {
		if prev.TrackingEnabled || prev.HasReminder() {
			s.dropReminder(ctx, slot)
			s.restore(ctx, &prev)
		}
		return nil, err
	}
	if schedErr != nil {
		return slot, schedErr
	}
	return slot, nil
}

// Delete cancels the slot's reminder and removes the slot. If the reminder
// cannot be cancelled the slot is kept and the error returned.
func (s *SlotService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cancelCurrent(ctx, slot); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return persistErr(err)
	}
	s.log.Info("time slot deleted", zap.Int64("slot_id", id), zap.String("name", slot.Name))
	return nil
}

// ReconcileReminders brings the scheduler in line with the stored slots:
// tracked slots whose reminder is not pending get a fresh one, untracked
// slots lose any reminder they still reference. It returns how many slots
// were changed.
func (s *SlotService) ReconcileReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.reminders.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrSchedulingFailure, err)
	}
	live := make(map[string]struct{}, len(pending))
	for _, r := range pending {
		live[r.ID] = struct{}{}
	}

	slots, err := s.repo.List(ctx)
	if err != nil {
		return 0, persistErr(err)
	}

	var (
		fixed int
		errs  []error
	)
	for i := range slots {
		slot := &slots[i]
		switch {
		case slot.TrackingEnabled:
			if slot.ReminderID != nil {
				if _, ok := live[*slot.ReminderID]; ok {
					continue
				}
			}
			rid, err := s.schedule(ctx, slot)
			if err != nil {
				slot.TrackingEnabled = false
				slot.ReminderID = nil
				errs = append(errs, fmt.Errorf("slot %q: %w", slot.Name, err))
			} else {
				slot.ReminderID = &rid
			}
		case slot.ReminderID != nil:
			if _, ok := live[*slot.ReminderID]; ok {
				s.dropReminder(ctx, slot)
			}
			slot.ReminderID = nil
		default:
			continue
		}
		if err := s.save(ctx, slot); err != nil {
			errs = append(errs, err)
			continue
		}
		fixed++
	}
	if fixed > 0 {
		s.log.Info("reminders reconciled", zap.Int("slots", fixed))
	}
	return fixed, errors.Join(errs...)
}

func (s *SlotService) schedule(ctx context.Context, slot *domain.TimeSlot) (string, error) {
	rid, err := s.reminders.Schedule(ctx, slot.ReminderTitle(), slot.ReminderMessage, slot.ReferenceTime)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSchedulingFailure, err)
	}
	return rid, nil
}

// cancelCurrent cancels the slot's reminder, if any, and clears the id. The
// slot is left untouched when the cancel fails.
func (s *SlotService) cancelCurrent(ctx context.Context, slot *domain.TimeSlot) error {
	if slot.ReminderID == nil {
		return nil
	}
	if err := s.reminders.Cancel(ctx, *slot.ReminderID); err != nil {
		return fmt.Errorf("%w: cancel %s: %w", domain.ErrSchedulingFailure, *slot.ReminderID, err)
	}
	slot.ReminderID = nil
	return nil
}

// dropReminder cancels the slot's reminder, if any, and clears the id even
// when the cancel fails. It reports whether there was an id to clear.
func (s *SlotService) dropReminder(ctx context.Context, slot *domain.TimeSlot) bool {
	if slot.ReminderID == nil {
		return false
	}
	if err := s.reminders.Cancel(ctx, *slot.ReminderID); err != nil {
		s.log.Warn("cancel reminder failed",
			zap.Int64("slot_id", slot.ID), zap.String("reminder_id", *slot.ReminderID), zap.Error(err))
	}
	slot.ReminderID = nil
	return true
}

// restore re-arms the reminder of a slot whose edit could not be saved and
// records its new id. If the id cannot be recorded the reminder is cancelled
// again, leaving the stored slot for ReconcileReminders.
func (s *SlotService) restore(ctx context.Context, prev *domain.TimeSlot) {
	if !prev.TrackingEnabled {
		return
	}
	rid, err := s.schedule(ctx, prev)
	if err != nil {
		s.log.Warn("re-arm reminder failed", zap.Int64("slot_id", prev.ID), zap.Error(err))
		prev.ReminderID = nil
		prev.TrackingEnabled = false
	} else {
		prev.ReminderID = &rid
	}
	if err := s.save(ctx, prev); err != nil {
		s.log.Warn("restore slot failed", zap.Int64("slot_id", prev.ID), zap.Error(err))
		s.dropReminder(ctx, prev)
		return
	}
	s.log.Info("slot edit rolled back", zap.Int64("slot_id", prev.ID))
}

// untrack records a failed enable: no reminder, tracking off. cause is
// returned unless the write itself fails.
func (s *SlotService) untrack(ctx context.Context, slot *domain.TimeSlot, cause error) error {
	if !slot.TrackingEnabled && slot.ReminderID == nil {
		return cause
	}
	slot.TrackingEnabled = false
	slot.ReminderID = nil
	if err := s.save(ctx, slot); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *SlotService) save(ctx context.Context, slot *domain.TimeSlot) error {
	return persistErr(s.repo.Update(ctx, *slot))
}

func (s *SlotService) ensureUnique(ctx context.Context, name string, self int64) error {
	other, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return persistErr(err)
	}
	if other != nil && other.ID != self {
		return domain.ErrDuplicateSlotName
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", domain.ErrInvalidSlot)
	}
	if len(name) > 64 {
		return "", fmt.Errorf("%w: name is longer than 64 characters", domain.ErrInvalidSlot)
	}
	return name, nil
}

// persistErr passes domain errors through and classifies everything else as
// a persistence failure.
func persistErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDuplicateSlotName) || errors.Is(err, domain.ErrSlotNotFound) || errors.Is(err, domain.ErrPersistenceFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}
