package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultReminderMessage is the notification body for a new slot.
const DefaultReminderMessage = "It's time to measure your blood pressure."

// TimeOfDay is an hour and minute independent of any date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day must be HH:MM", ErrInvalidSlot)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf returns the hour and minute of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

// On projects t onto the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes t as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TimeSlot is a named part of the day with one reference time. ReminderID is
// set exactly while a reminder is scheduled for the slot.
type TimeSlot struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	ReferenceTime   TimeOfDay `json:"referenceTime"`
	TrackingEnabled bool      `json:"trackingEnabled"`
	ReminderID      *string   `json:"reminderId"`
	ReminderMessage string    `json:"reminderMessage"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ReminderTitle is the notification title for the slot.
func (s TimeSlot) ReminderTitle() string {
	return s.Name + " Reminder"
}

// HasReminder reports whether a reminder is currently scheduled.
func (s TimeSlot) HasReminder() bool {
	return s.ReminderID != nil
}

// DefaultSlots returns the slots seeded on first launch.
func DefaultSlots() []TimeSlot {
	return []TimeSlot{
		{Name: "Morning", ReferenceTime: TimeOfDay{Hour: 8}, ReminderMessage: DefaultReminderMessage},
		{Name: "Afternoon", ReferenceTime: TimeOfDay{Hour: 16}, ReminderMessage: DefaultReminderMessage},
		{Name: "Evening", ReferenceTime: TimeOfDay{Hour: 20}, ReminderMessage: DefaultReminderMessage},
	}
}

// SlotRepository is the port for time slot persistence. List returns slots
// ordered by reference time, then name.
type SlotRepository interface {
	List(ctx context.Context) ([]TimeSlot, error)
	Get(ctx context.Context, id int64) (*TimeSlot, error)
	GetByName(ctx context.Context, name string) (*TimeSlot, error)
	Create(ctx context.Context, slot TimeSlot) (*TimeSlot, error)
	Update(ctx context.Context, slot TimeSlot) error
	Delete(ctx context.Context, id int64) error
	// SeedDefaults inserts slots and flips the first-launch flag in one
	// step. It reports false without inserting when the flag is already set.
	SeedDefaults(ctx context.Context, slots []TimeSlot) (bool, error)
}
