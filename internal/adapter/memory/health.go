package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"bpdiary/internal/domain"

	"github.com/google/uuid"
)

var _ domain.HealthStore = (*HealthStore)(nil)

// HealthStore is an in-memory health data store. Every change is appended to
// a log; a feed anchor is the sequence number of the last change it saw.
type HealthStore struct {
	mu        sync.Mutex
	log       []domain.SampleBatch
	changed   chan struct{}
	available bool
	status    domain.AuthorizationStatus
	denyAuth  bool
}

// NewHealthStore returns an available store whose authorization is not yet
// determined. RequestAuthorization grants it.
func NewHealthStore() *HealthStore {
	return &HealthStore{changed: make(chan struct{}), available: true}
}

// SetAvailable switches whether the store reports itself usable.
func (h *HealthStore) SetAvailable(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = ok
}

// DenyAuthorization makes the store refuse every authorization request.
func (h *HealthStore) DenyAuthorization() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.denyAuth = true
	h.status = domain.AuthorizationDenied
}

// Available reports whether the store can be used.
func (h *HealthStore) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// AuthorizationStatus returns the current sharing status.
func (h *HealthStore) AuthorizationStatus(ctx context.Context) (domain.AuthorizationStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, nil
}

// RequestAuthorization grants access unless the store was told to deny it.
func (h *HealthStore) RequestAuthorization(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.denyAuth {
		h.status = domain.AuthorizationGranted
	}
	return nil
}

// SaveReading stores m as a blood-pressure pair and a heart-rate sample.
func (h *HealthStore) SaveReading(ctx context.Context, m domain.Measurement) error {
	bp, hr := m.Samples(uuid.NewString(), uuid.NewString())
	h.Append(domain.SampleBatch{
		BloodPressure: []domain.BloodPressureSample{bp},
		HeartRate:     []domain.HeartRateSample{hr},
	})
	return nil
}

// Append records a batch of changes and wakes any waiting feed readers. It
// returns the batch's sequence number.
func (h *HealthStore) Append(b domain.SampleBatch) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	b.Anchor = ""
	h.log = append(h.log, b)
	close(h.changed)
	h.changed = make(chan struct{})
	return len(h.log)
}

// Delete records the removal of samples.
func (h *HealthStore) Delete(ids ...string) int {
	return h.Append(domain.SampleBatch{Deleted: ids})
}

// Next returns every change after q.Anchor that falls in the query window,
// merged into one batch. It blocks while there is none.
func (h *HealthStore) Next(ctx context.Context, q domain.FeedQuery) (domain.SampleBatch, error) {
	from := 0
	if q.Anchor != "" {
		n, err := strconv.Atoi(q.Anchor)
		if err != nil || n < 0 {
			return domain.SampleBatch{}, fmt.Errorf("invalid anchor %q", q.Anchor)
		}
		from = n
	}
	for {
		h.mu.Lock()
		out := domain.SampleBatch{}
		for _, b := range h.log[min(from, len(h.log)):] {
			for _, s := range b.BloodPressure {
				if q.Contains(s.TakenAt) {
					out.BloodPressure = append(out.BloodPressure, s)
				}
			}
			for _, s := range b.HeartRate {
				if q.Contains(s.TakenAt) {
					out.HeartRate = append(out.HeartRate, s)
				}
			}
			out.Deleted = append(out.Deleted, b.Deleted...)
		}
		head := len(h.log)
		wait := h.changed
		h.mu.Unlock()

		if !out.Empty() {
			out.Anchor = strconv.Itoa(head)
			return out, nil
		}
		from = head
		select {
		case <-ctx.Done():
			return domain.SampleBatch{}, ctx.Err()
		case <-wait:
		}
	}
}
