package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bpdiary/internal/domain"

	"github.com/google/uuid"
)

const (
	authorizationKey = "health_authorization"
	feedPageSize     = 500
)

var _ domain.HealthStore = (*HealthStore)(nil)

// HealthStore keeps samples in health_samples and records every insert and
// removal in health_sample_changes. A feed anchor is the last change seq.
// Writers hold an exclusive lock on the change log until commit, so seq
// order is commit order and a reader never skips past an uncommitted change.
type HealthStore struct {
	db   *DB
	poll time.Duration
}

// NewHealthStore creates a HealthStore that polls for changes every poll.
func NewHealthStore(db *DB, poll time.Duration) *HealthStore {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &HealthStore{db: db, poll: poll}
}

// Available reports whether the database answers a ping.
func (h *HealthStore) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.db.Ping(ctx) == nil
}

// AuthorizationStatus reads the stored sharing decision.
func (h *HealthStore) AuthorizationStatus(ctx context.Context) (domain.AuthorizationStatus, error) {
	var v string
	err := h.db.sql.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = $1;", authorizationKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuthorizationNotDetermined, nil
	}
	if err != nil {
		return domain.AuthorizationNotDetermined, err
	}
	switch v {
	case "granted":
		return domain.AuthorizationGranted, nil
	case "denied":
		return domain.AuthorizationDenied, nil
	}
	return domain.AuthorizationNotDetermined, nil
}

// RequestAuthorization grants sharing unless a decision is already stored.
func (h *HealthStore) RequestAuthorization(ctx context.Context) error {
	_, err := h.db.sql.ExecContext(ctx,
		"INSERT INTO app_settings (key, value, updated_at) VALUES ($1, 'granted', $2) ON CONFLICT (key) DO NOTHING;",
		authorizationKey, time.Now().UTC(),
	)
	return err
}

// SetAuthorization overwrites the stored sharing decision.
func (h *HealthStore) SetAuthorization(ctx context.Context, status domain.AuthorizationStatus) error {
	_, err := h.db.sql.ExecContext(ctx,
		"INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at;",
		authorizationKey, status.String(), time.Now().UTC(),
	)
	return err
}

// SaveReading stores m as a blood-pressure and a heart-rate sample.
func (h *HealthStore) SaveReading(ctx context.Context, m domain.Measurement) error {
	bp, hr := m.Samples(uuid.NewString(), uuid.NewString())

	tx, err := h.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := lockChanges(ctx, tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO health_samples (id, kind, systolic, diastolic, taken_at) VALUES ($1, 'bp', $2, $3, $4);",
		bp.ID, bp.Systolic, bp.Diastolic, bp.TakenAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert blood pressure: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO health_samples (id, kind, bpm, taken_at) VALUES ($1, 'hr', $2, $3);",
		hr.ID, hr.BPM, hr.TakenAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert heart rate: %w", err)
	}
	for _, id := range []string{bp.ID, hr.ID} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO health_sample_changes (sample_id, op, created_at) VALUES ($1, 'add', $2);", id, now,
		); err != nil {
			return fmt.Errorf("record change: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteSamples removes samples and records their removal.
func (h *HealthStore) DeleteSamples(ctx context.Context, ids ...string) error {
	tx, err := h.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := lockChanges(ctx, tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, "DELETE FROM health_samples WHERE id = $1;", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO health_sample_changes (sample_id, op, created_at) VALUES ($1, 'delete', $2);", id, now,
		); err != nil {
			return fmt.Errorf("record change: %w", err)
		}
	}
	return tx.Commit()
}

// lockChanges serialises change-log writers for the rest of tx. Readers are
// not blocked.
func lockChanges(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "LOCK TABLE health_sample_changes IN EXCLUSIVE MODE;"); err != nil {
		return fmt.Errorf("lock change log: %w", err)
	}
	return nil
}

// Next returns the changes after q.Anchor inside the query window. Samples
// added and later removed come back as a removal only. It polls until there
// is something to return or ctx ends.
func (h *HealthStore) Next(ctx context.Context, q domain.FeedQuery) (domain.SampleBatch, error) {
	var after int64
	if q.Anchor != "" {
		n, err := strconv.ParseInt(q.Anchor, 10, 64)
		if err != nil || n < 0 {
			return domain.SampleBatch{}, fmt.Errorf("invalid anchor %q", q.Anchor)
		}
		after = n
	}
	for {
		batch, last, err := h.changesAfter(ctx, after, q)
		if err != nil {
			return domain.SampleBatch{}, err
		}
		if !batch.Empty() {
			batch.Anchor = strconv.FormatInt(last, 10)
			return batch, nil
		}
		after = last
		select {
		case <-ctx.Done():
			return domain.SampleBatch{}, ctx.Err()
		case <-time.After(h.poll):
		}
	}
}

func (h *HealthStore) changesAfter(ctx context.Context, after int64, q domain.FeedQuery) (domain.SampleBatch, int64, error) {
	rows, err := h.db.sql.QueryContext(ctx, `
		SELECT c.seq, c.op, c.sample_id, s.kind, s.systolic, s.diastolic, s.bpm, s.taken_at
		FROM health_sample_changes c
		LEFT JOIN health_samples s ON s.id = c.sample_id
		WHERE c.seq > $1
		ORDER BY c.seq
		LIMIT $2;`, after, feedPageSize)
	if err != nil {
		return domain.SampleBatch{}, after, err
	}
	defer rows.Close()

	var batch domain.SampleBatch
	last := after
	for rows.Next() {
		var (
			seq           int64
			op, id        string
			kind          sql.NullString
			sys, dia, bpm sql.NullFloat64
			takenAt       sql.NullTime
		)
		if err := rows.Scan(&seq, &op, &id, &kind, &sys, &dia, &bpm, &takenAt); err != nil {
			return domain.SampleBatch{}, after, err
		}
		last = seq
		if op == "delete" {
			batch.Deleted = append(batch.Deleted, id)
			continue
		}
		// The sample was removed since; its delete change follows.
		if !kind.Valid || !takenAt.Valid || !q.Contains(takenAt.Time) {
			continue
		}
		switch kind.String {
		case "bp":
			batch.BloodPressure = append(batch.BloodPressure, domain.BloodPressureSample{
				ID: id, Systolic: sys.Float64, Diastolic: dia.Float64, TakenAt: takenAt.Time,
			})
		case "hr":
			batch.HeartRate = append(batch.HeartRate, domain.HeartRateSample{ID: id, BPM: bpm.Float64, TakenAt: takenAt.Time})
		}
	}
	return batch, last, rows.Err()
}
