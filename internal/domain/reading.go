package domain

import (
	"fmt"
	"time"
)

// BloodPressure is a correlated systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// Reading is a merged blood-pressure and heart-rate data point at one instant.
// Two readings are the same reading when all four fields match.
type Reading struct {
	Systolic  float64   `json:"systolic"`
	Diastolic float64   `json:"diastolic"`
	HeartRate float64   `json:"heartRate"`
	TakenAt   time.Time `json:"takenAt"`
}

// ReadingKey is a comparable form of Reading usable as a map key.
type ReadingKey struct {
	Systolic  float64
	Diastolic float64
	HeartRate float64
	UnixNano  int64
}

// Key returns the value identity of r.
func (r Reading) Key() ReadingKey {
	return ReadingKey{Systolic: r.Systolic, Diastolic: r.Diastolic, HeartRate: r.HeartRate, UnixNano: r.TakenAt.UnixNano()}
}

// Equal reports whether r and o carry the same values at the same instant.
func (r Reading) Equal(o Reading) bool {
	return r.Key() == o.Key()
}

func (r Reading) String() string {
	return fmt.Sprintf("%.0f/%.0f mmHg %.0f bpm @ %s", r.Systolic, r.Diastolic, r.HeartRate, r.TakenAt.Format(time.RFC3339))
}

// PartialReading is what is known at one instant: the blood-pressure pair,
// the heart rate, or both. A nil field means no sample, which keeps a
// measured zero distinguishable from a missing value.
type PartialReading struct {
	TakenAt       time.Time      `json:"takenAt"`
	BloodPressure *BloodPressure `json:"bloodPressure"`
	HeartRate     *float64       `json:"heartRate"`
}

// Complete returns the merged reading if both halves are present.
func (p PartialReading) Complete() (Reading, bool) {
	if p.BloodPressure == nil || p.HeartRate == nil {
		return Reading{}, false
	}
	return p.Reading(), true
}

// Reading resolves p with 0 standing in for any missing field.
func (p PartialReading) Reading() Reading {
	r := Reading{TakenAt: p.TakenAt}
	if p.BloodPressure != nil {
		r.Systolic = p.BloodPressure.Systolic
		r.Diastolic = p.BloodPressure.Diastolic
	}
	if p.HeartRate != nil {
		r.HeartRate = *p.HeartRate
	}
	return r
}
