package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"bpdiary/internal/domain"
)

// SlotSummary says whether a slot's measurement was taken on a day and what
// it was.
type SlotSummary struct {
	Slot       domain.TimeSlot        `json:"slot"`
	Taken      bool                   `json:"taken"`
	MeasuredAt *time.Time             `json:"measuredAt"`
	Reading    *domain.PartialReading `json:"reading"`
}

// SummarizeDay matches every slot against the index for day. Each slot's
// reference time is projected onto day and paired with the nearest reading
// within DefaultTolerance. The result follows slot order by reference time.
func SummarizeDay(slots []domain.TimeSlot, ix *ReadingIndex, day time.Time) []SlotSummary {
	return summarizeDay(slots, ix, day, DefaultTolerance)
}

func summarizeDay(slots []domain.TimeSlot, ix *ReadingIndex, day time.Time, tolerance time.Duration) []SlotSummary {
	ordered := slices.Clone(slots)
	slices.SortStableFunc(ordered, func(a, b domain.TimeSlot) int {
		if d := a.ReferenceTime.Minutes() - b.ReferenceTime.Minutes(); d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})

	out := make([]SlotSummary, 0, len(ordered))
	for _, slot := range ordered {
		sum := SlotSummary{Slot: slot}
		if at, ok := ix.NearestTimestamp(slot.ReferenceTime.On(day), tolerance); ok {
			if p, ok := ix.Lookup(at); ok {
				sum.Taken = true
				sum.MeasuredAt = &at
				sum.Reading = &p
			}
		}
		out = append(out, sum)
	}
	return out
}

// SummaryService answers "which of today's slots have a measurement".
type SummaryService struct {
	slots     domain.SlotRepository
	index     *ReadingIndex
	tolerance time.Duration
	now       func() time.Time
}

// NewSummaryService creates a SummaryService over the slot store and index.
// A non-positive tolerance selects DefaultTolerance.
func NewSummaryService(slots domain.SlotRepository, ix *ReadingIndex, tolerance time.Duration) *SummaryService {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &SummaryService{slots: slots, index: ix, tolerance: tolerance, now: time.Now}
}

// Day summarises the local calendar day containing day.
func (s *SummaryService) Day(ctx context.Context, day time.Time) ([]SlotSummary, error) {
	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, persistErr(err)
	}
	return summarizeDay(slots, s.index, day, s.tolerance), nil
}

// Today summarises the current local day.
func (s *SummaryService) Today(ctx context.Context) ([]SlotSummary, error) {
	return s.Day(ctx, s.now().In(time.Local))
}

// ReadingsForDay returns the merged readings taken on the local calendar day
// containing day.
func (s *SummaryService) ReadingsForDay(_ context.Context, day time.Time) []domain.Reading {
	start := StartOfDay(day)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return s.index.Readings(start, end)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
