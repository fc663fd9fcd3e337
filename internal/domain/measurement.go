package domain

import (
	"fmt"
	"time"
)

// Accepted ranges for manually entered values.
const (
	MinSystolic  = 40
	MaxSystolic  = 300
	MinDiastolic = 30
	MaxDiastolic = 200
	MinHeartRate = 30
	MaxHeartRate = 350
)

// Measurement is a manually entered reading before it is saved to the
// health store.
type Measurement struct {
	Systolic  int       `json:"systolic"`
	Diastolic int       `json:"diastolic"`
	HeartRate int       `json:"heartRate"`
	TakenAt   time.Time `json:"takenAt"`
}

// Validate checks the value ranges and that the measurement is not in the future.
func (m Measurement) Validate(now time.Time) error {
	if m.Systolic < MinSystolic || m.Systolic > MaxSystolic {
		return fmt.Errorf("%w: systolic must be within [%d, %d]", ErrInvalidMeasurement, MinSystolic, MaxSystolic)
	}
	if m.Diastolic < MinDiastolic || m.Diastolic > MaxDiastolic {
		return fmt.Errorf("%w: diastolic must be within [%d, %d]", ErrInvalidMeasurement, MinDiastolic, MaxDiastolic)
	}
	if m.HeartRate < MinHeartRate || m.HeartRate > MaxHeartRate {
		return fmt.Errorf("%w: heart rate must be within [%d, %d]", ErrInvalidMeasurement, MinHeartRate, MaxHeartRate)
	}
	if m.TakenAt.IsZero() {
		return fmt.Errorf("%w: missing time", ErrInvalidMeasurement)
	}
	if m.TakenAt.After(now) {
		return fmt.Errorf("%w: time is in the future", ErrInvalidMeasurement)
	}
	return nil
}

// Samples splits m into the blood-pressure and heart-rate samples stored for
// it, both stamped with the same instant.
func (m Measurement) Samples(bpID, hrID string) (BloodPressureSample, HeartRateSample) {
	bp := BloodPressureSample{ID: bpID, Systolic: float64(m.Systolic), Diastolic: float64(m.Diastolic), TakenAt: m.TakenAt}
	hr := HeartRateSample{ID: hrID, BPM: float64(m.HeartRate), TakenAt: m.TakenAt}
	return bp, hr
}
