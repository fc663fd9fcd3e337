// Package notify schedules the daily slot reminders and delivers them
// through a Publisher when they fall due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"bpdiary/internal/domain"
	"bpdiary/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxDelivered bounds the delivered-reminder history.
const maxDelivered = 256

// Notification is what a Publisher sends when a reminder fires.
type Notification struct {
	ReminderID string           `json:"reminderId"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	At         domain.TimeOfDay `json:"at"`
	FiredAt    time.Time        `json:"firedAt"`
}

// Publisher delivers fired reminders.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// readier is implemented by publishers that can tell whether delivery is
// currently possible.
type readier interface {
	Ready() error
}

type entry struct {
	domain.Reminder
	// armed is the last instant the reminder was scheduled or fired; only
	// occurrences after it are due.
	armed time.Time
}

var _ domain.ReminderScheduler = (*Scheduler)(nil)

// Scheduler is an in-process domain.ReminderScheduler. Reminders repeat
// daily at their time of day in the local zone. Run drives delivery.
type Scheduler struct {
	mu        sync.Mutex
	pending   map[string]*entry
	delivered []domain.DeliveredReminder

	pub Publisher
	log *zap.Logger
	now func() time.Time
}

// NewScheduler creates a Scheduler delivering through pub.
func NewScheduler(pub Publisher, log *zap.Logger) *Scheduler {
	return &Scheduler{
		pending: make(map[string]*entry),
		pub:     pub,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// RequestPermission fails when no publisher can deliver right now.
func (s *Scheduler) RequestPermission(ctx context.Context) error {
	if s.pub == nil {
		return errors.New("no notification channel configured")
	}
	if r, ok := s.pub.(readier); ok {
		return r.Ready()
	}
	return nil
}

// Schedule registers a daily reminder at at and returns its new ID. The
// first delivery is the next occurrence of at after now.
func (s *Scheduler) Schedule(ctx context.Context, title, body string, at domain.TimeOfDay) (string, error) {
	if !at.Valid() {
		return "", fmt.Errorf("invalid reminder time %v", at)
	}
	if strings.TrimSpace(title) == "" {
		return "", errors.New("reminder title is required")
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = &entry{
		Reminder: domain.Reminder{ID: id, Title: title, Body: body, At: at},
		armed:    s.now().In(time.Local),
	}
	s.log.Debug("reminder scheduled", zap.String("reminder_id", id), zap.Stringer("at", at))
	return id, nil
}

// Cancel removes pending reminders. Unknown IDs are ignored.
func (s *Scheduler) Cancel(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.pending, id)
	}
	return nil
}

// Pending lists the scheduled reminders by time of day.
func (s *Scheduler) Pending(ctx context.Context) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Reminder, 0, len(s.pending))
	for _, e := range s.pending {
		out = append(out, e.Reminder)
	}
	slices.SortFunc(out, func(a, b domain.Reminder) int {
		if d := a.At.Minutes() - b.At.Minutes(); d != 0 {
			return d
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delivered lists reminders that fired within [from, to].
func (s *Scheduler) Delivered(ctx context.Context, from, to time.Time) ([]domain.DeliveredReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeliveredReminder
	for _, d := range s.delivered {
		if !d.DeliveredAt.Before(from) && !d.DeliveredAt.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

// RemoveDelivered drops delivered reminders from the history.
func (s *Scheduler) RemoveDelivered(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = slices.DeleteFunc(s.delivered, func(d domain.DeliveredReminder) bool {
		return slices.Contains(ids, d.ID)
	})
	return nil
}

// Run delivers due reminders every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick delivers every reminder whose occurrence today has passed and has not
// been delivered yet. It returns the number delivered.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now().In(time.Local)

	s.mu.Lock()
	var due []*entry
	for _, e := range s.pending {
		occ := e.At.On(now)
		if !occ.After(now) && occ.After(e.armed) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sent := 0
	for _, e := range due {
		n := Notification{ReminderID: e.ID, Title: e.Title, Body: e.Body, At: e.At, FiredAt: now}
		if err := s.pub.Publish(ctx, n); err != nil {
			s.log.Warn("reminder delivery failed", zap.String("reminder_id", e.ID), zap.Error(err))
			continue
		}
		s.mu.Lock()
		// Cancelled while publishing: record nothing.
		if cur, ok := s.pending[e.ID]; ok && cur == e {
			e.armed = e.At.On(now)
			s.delivered = append(s.delivered, domain.DeliveredReminder{Reminder: e.Reminder, DeliveredAt: now})
			if len(s.delivered) > maxDelivered {
				s.delivered = slices.Delete(s.delivered, 0, len(s.delivered)-maxDelivered)
			}
			sent++
		}
		s.mu.Unlock()
	}
	if sent > 0 {
		s.log.Info("reminders delivered", zap.Int("count", sent))
	}
	return sent
}
