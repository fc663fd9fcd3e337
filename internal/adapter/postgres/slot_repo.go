package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bpdiary/internal/domain"
)

const seededKey = "defaults_seeded"

var _ domain.SlotRepository = (*SlotRepo)(nil)

// SlotRepo stores time slots in the time_slots table.
type SlotRepo struct {
	db *DB
}

// NewSlotRepo wraps a DB as a SlotRepository.
func NewSlotRepo(db *DB) *SlotRepo {
	return &SlotRepo{db: db}
}

const slotColumns = "id, name, ref_minutes, tracking_enabled, reminder_id, reminder_message, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*domain.TimeSlot, error) {
	var (
		s       domain.TimeSlot
		minutes int
		rid     sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &minutes, &s.TrackingEnabled, &rid, &s.ReminderMessage, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.ReferenceTime = domain.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
	if rid.Valid {
		s.ReminderID = &rid.String
	}
	return &s, nil
}

func nullable(id *string) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}

// List returns every slot ordered by reference time, then name.
func (r *SlotRepo) List(ctx context.Context) ([]domain.TimeSlot, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		"SELECT "+slotColumns+" FROM time_slots ORDER BY ref_minutes, name;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Get returns a slot by ID, or nil.
func (r *SlotRepo) Get(ctx context.Context, id int64) (*domain.TimeSlot, error) {
	s, err := scanSlot(r.db.sql.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM time_slots WHERE id = $1;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetByName returns the slot named name, or nil.
func (r *SlotRepo) GetByName(ctx context.Context, name string) (*domain.TimeSlot, error) {
	s, err := scanSlot(r.db.sql.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM time_slots WHERE name = $1;", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Create inserts a slot. A name collision yields ErrDuplicateSlotName.
func (r *SlotRepo) Create(ctx context.Context, slot domain.TimeSlot) (*domain.TimeSlot, error) {
	return insertSlot(ctx, r.db.sql, slot)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertSlot(ctx context.Context, q queryRower, slot domain.TimeSlot) (*domain.TimeSlot, error) {
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	s, err := scanSlot(q.QueryRowContext(ctx,
		"INSERT INTO time_slots (name, ref_minutes, tracking_enabled, reminder_id, reminder_message, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+slotColumns+";",
		slot.Name, slot.ReferenceTime.Minutes(), slot.TrackingEnabled, nullable(slot.ReminderID), slot.ReminderMessage, slot.CreatedAt,
	))
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateSlotName
	}
	return s, err
}

// Update writes every mutable field of slot.
func (r *SlotRepo) Update(ctx context.Context, slot domain.TimeSlot) error {
	res, err := r.db.sql.ExecContext(ctx,
		"UPDATE time_slots SET name = $2, ref_minutes = $3, tracking_enabled = $4, reminder_id = $5, reminder_message = $6 WHERE id = $1;",
		slot.ID, slot.Name, slot.ReferenceTime.Minutes(), slot.TrackingEnabled, nullable(slot.ReminderID), slot.ReminderMessage,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSlotName
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// Delete removes a slot.
func (r *SlotRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM time_slots WHERE id = $1;", id)
	return err
}

// SeedDefaults claims the first-launch flag and inserts slots in the same
// transaction. A concurrent caller blocks on the flag's key until the first
// commits, then finds it taken.
func (r *SlotRepo) SeedDefaults(ctx context.Context, slots []domain.TimeSlot) (bool, error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO app_settings (key, value, updated_at) VALUES ($1, 'true', $2) ON CONFLICT (key) DO NOTHING;",
		seededKey, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claim seed flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	for _, s := range slots {
		if _, err := insertSlot(ctx, tx, s); err != nil {
			return false, fmt.Errorf("seed %q: %w", s.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
