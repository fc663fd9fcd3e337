package domain

import (
	"context"
	"time"
)

// BloodPressureSample is one correlated systolic/diastolic sample as the
// health store reports it.
type BloodPressureSample struct {
	ID        string    `json:"id"`
	Systolic  float64   `json:"systolic"`
	Diastolic float64   `json:"diastolic"`
	TakenAt   time.Time `json:"takenAt"`
}

// HeartRateSample is one heart-rate sample in beats per minute.
type HeartRateSample struct {
	ID      string    `json:"id"`
	BPM     float64   `json:"bpm"`
	TakenAt time.Time `json:"takenAt"`
}

// SampleBatch is one delivery of the health store's append/remove stream.
// Anchor is an opaque cursor; resuming a feed from it yields the batches
// delivered after this one.
type SampleBatch struct {
	BloodPressure []BloodPressureSample `json:"bloodPressure,omitempty"`
	HeartRate     []HeartRateSample     `json:"heartRate,omitempty"`
	Deleted       []string              `json:"deleted,omitempty"`
	Anchor        string                `json:"anchor"`
}

// Empty reports whether the batch carries no changes.
func (b SampleBatch) Empty() bool {
	return len(b.BloodPressure) == 0 && len(b.HeartRate) == 0 && len(b.Deleted) == 0
}

// FeedQuery selects the samples a feed delivers. A zero Until means open ended.
type FeedQuery struct {
	Since  time.Time
	Until  time.Time
	Anchor string
}

// Contains reports whether t falls inside the query window.
func (q FeedQuery) Contains(t time.Time) bool {
	if !q.Since.IsZero() && t.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !t.Before(q.Until) {
		return false
	}
	return true
}

// AuthorizationStatus is the health store's sharing state.
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationDenied
	AuthorizationGranted
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationDenied:
		return "denied"
	case AuthorizationGranted:
		return "granted"
	default:
		return "not-determined"
	}
}

// HealthFeed is the port for the health store's change stream.
type HealthFeed interface {
	// Next blocks until a batch after q.Anchor is available or ctx ends.
	Next(ctx context.Context, q FeedQuery) (SampleBatch, error)
}

// HealthStore is the port for the health data store.
type HealthStore interface {
	HealthFeed
	Available() bool
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
	RequestAuthorization(ctx context.Context) error
	SaveReading(ctx context.Context, m Measurement) error
}
