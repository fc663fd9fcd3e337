package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"bpdiary/internal/domain"
)

// SlotRepo implements time slot persistence on top of DB.
type SlotRepo struct {
	db *DB
}

// NewSlotRepo creates a new slot repository.
func (db *DB) NewSlotRepo() *SlotRepo {
	return &SlotRepo{db: db}
}

// List returns the slots ordered by reference time, then name.
func (r *SlotRepo) List(ctx context.Context) ([]domain.TimeSlot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]domain.TimeSlot, len(r.db.slots))
	for i, s := range r.db.slots {
		out[i] = cloneSlot(s)
	}
	slices.SortStableFunc(out, func(a, b domain.TimeSlot) int {
		if d := a.ReferenceTime.Minutes() - b.ReferenceTime.Minutes(); d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Get returns a slot by ID, or nil.
func (r *SlotRepo) Get(ctx context.Context, id int64) (*domain.TimeSlot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if i := r.db.slotIndex(id); i >= 0 {
		s := cloneSlot(r.db.slots[i])
		return &s, nil
	}
	return nil, nil
}

// GetByName returns the slot with exactly name, or nil.
func (r *SlotRepo) GetByName(ctx context.Context, name string) (*domain.TimeSlot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, s := range r.db.slots {
		if s.Name == name {
			c := cloneSlot(s)
			return &c, nil
		}
	}
	return nil, nil
}

// Create inserts a slot and assigns its ID.
func (r *SlotRepo) Create(ctx context.Context, slot domain.TimeSlot) (*domain.TimeSlot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertSlot(slot)
}

// Update replaces a stored slot.
func (r *SlotRepo) Update(ctx context.Context, slot domain.TimeSlot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i := r.db.slotIndex(slot.ID)
	if i < 0 {
		return domain.ErrSlotNotFound
	}
	for _, s := range r.db.slots {
		if s.ID != slot.ID && s.Name == slot.Name {
			return domain.ErrDuplicateSlotName
		}
	}
	slot.CreatedAt = r.db.slots[i].CreatedAt
	r.db.slots[i] = cloneSlot(slot)
	return nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (r *SlotRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if i := r.db.slotIndex(id); i >= 0 {
		r.db.slots = slices.Delete(r.db.slots, i, i+1)
	}
	return nil
}

// SeedDefaults inserts slots the first time it is called on this DB.
func (r *SlotRepo) SeedDefaults(ctx context.Context, slots []domain.TimeSlot) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.seeded {
		return false, nil
	}
	for _, s := range slots {
		if _, err := r.db.insertSlot(s); err != nil {
			return false, err
		}
	}
	r.db.seeded = true
	return true, nil
}

func (db *DB) insertSlot(slot domain.TimeSlot) (*domain.TimeSlot, error) {
	for _, s := range db.slots {
		if s.Name == slot.Name {
			return nil, domain.ErrDuplicateSlotName
		}
	}
	db.slotIDCounter++
	slot.ID = db.slotIDCounter
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	db.slots = append(db.slots, cloneSlot(slot))
	c := cloneSlot(slot)
	return &c, nil
}

func (db *DB) slotIndex(id int64) int {
	return slices.IndexFunc(db.slots, func(s domain.TimeSlot) bool { return s.ID == id })
}

// cloneSlot copies the reminder pointer so callers never alias stored state.
func cloneSlot(s domain.TimeSlot) domain.TimeSlot {
	if s.ReminderID != nil {
		id := *s.ReminderID
		s.ReminderID = &id
	}
	return s
}
