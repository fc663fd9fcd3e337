package app

import (
	"context"
	"fmt"
	"time"

	"bpdiary/internal/domain"
	"bpdiary/internal/logger"

	"go.uber.org/zap"
)

// reminderClearWindow is how close a delivered reminder must be to a new
// reading to be dismissed by it.
const reminderClearWindow = time.Hour

// ReadingService records manually entered readings into the health store.
type ReadingService struct {
	health    domain.HealthStore
	reminders domain.ReminderScheduler
	log       *zap.Logger
	now       func() time.Time
}

// NewReadingService creates a ReadingService.
func NewReadingService(health domain.HealthStore, reminders domain.ReminderScheduler, log *zap.Logger) *ReadingService {
	return &ReadingService{health: health, reminders: reminders, log: logger.OrNop(log), now: time.Now}
}

// RecordReading validates m, makes sure the health store may be written,
// and saves it. Delivered reminders within an hour of the reading are then
// dismissed; failing to do so is logged, not returned.
func (s *ReadingService) RecordReading(ctx context.Context, m domain.Measurement) error {
	now := s.now()
	if m.TakenAt.IsZero() {
		m.TakenAt = now
	}
	if err := m.Validate(now); err != nil {
		return err
	}
	if !s.health.Available() {
		return domain.ErrHealthDataUnavailable
	}
	if err := s.health.RequestAuthorization(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthorizationDenied, err)
	}
	status, err := s.health.AuthorizationStatus(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthorizationDenied, err)
	}
	if status != domain.AuthorizationGranted {
		return fmt.Errorf("%w: status %s", domain.ErrAuthorizationDenied, status)
	}
	if err := s.health.SaveReading(ctx, m); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	s.log.Info("reading recorded",
		zap.Int("systolic", m.Systolic),
		zap.Int("diastolic", m.Diastolic),
		zap.Int("heart_rate", m.HeartRate),
		zap.Time("taken_at", m.TakenAt),
	)

	if n, err := s.clearDelivered(ctx, m.TakenAt); err != nil {
		s.log.Warn("clear delivered reminders failed", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("delivered reminders cleared", zap.Int("count", n))
	}
	return nil
}

func (s *ReadingService) clearDelivered(ctx context.Context, at time.Time) (int, error) {
	if s.reminders == nil {
		return 0, nil
	}
	delivered, err := s.reminders.Delivered(ctx, at.Add(-reminderClearWindow), at.Add(reminderClearWindow))
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, d := range delivered {
		diff := d.DeliveredAt.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff < reminderClearWindow {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return len(ids), s.reminders.RemoveDelivered(ctx, ids...)
}
