package domain

import (
	"context"
	"time"
)

// Reminder is a repeating daily notification.
type Reminder struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    TimeOfDay `json:"at"`
}

// DeliveredReminder is a reminder that has fired.
type DeliveredReminder struct {
	Reminder
	DeliveredAt time.Time `json:"deliveredAt"`
}

// ReminderScheduler is the port for the notification scheduler.
type ReminderScheduler interface {
	RequestPermission(ctx context.Context) error
	// Schedule registers a reminder repeating every day at at and returns its
	// freshly generated identifier.
	Schedule(ctx context.Context, title, body string, at TimeOfDay) (string, error)
	Cancel(ctx context.Context, ids ...string) error
	Pending(ctx context.Context) ([]Reminder, error)
	Delivered(ctx context.Context, from, to time.Time) ([]DeliveredReminder, error)
	RemoveDelivered(ctx context.Context, ids ...string) error
}
