package app

import (
	"slices"
	"sync"
	"time"

	"bpdiary/internal/domain"
)

// DefaultTolerance is how far a reading may be from a slot's reference time
// and still count as that slot's measurement.
const DefaultTolerance = time.Hour

// ReadingIndex holds the health samples of a recent window and answers
// reconciliation queries. Blood-pressure pairs and heart-rate samples are
// kept apart and merged by timestamp on read, so either half may arrive
// first. Every batch is applied under one write lock.
type ReadingIndex struct {
	mu sync.RWMutex
	bp []domain.BloodPressureSample
	hr []domain.HeartRateSample
}

// NewReadingIndex returns an empty index.
func NewReadingIndex() *ReadingIndex {
	return &ReadingIndex{}
}

// UpdateStats counts what one ApplyUpdate changed.
type UpdateStats struct {
	Added   int
	Removed int
}

// ApplyUpdate merges the added samples, then removes every sample listed in
// batch.Deleted. Samples whose ID is already held are skipped, so re-applying
// a batch is a no-op. Distinct IDs with equal values are all kept; readers
// collapse them by value.
func (ix *ReadingIndex) ApplyUpdate(batch domain.SampleBatch) UpdateStats {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var st UpdateStats
	for _, s := range batch.BloodPressure {
		dup := slices.ContainsFunc(ix.bp, func(o domain.BloodPressureSample) bool {
			return o.ID == s.ID
		})
		if !dup {
			ix.bp = append(ix.bp, s)
			st.Added++
		}
	}
	for _, s := range batch.HeartRate {
		dup := slices.ContainsFunc(ix.hr, func(o domain.HeartRateSample) bool {
			return o.ID == s.ID
		})
		if !dup {
			ix.hr = append(ix.hr, s)
			st.Added++
		}
	}
	if len(batch.Deleted) > 0 {
		gone := make(map[string]struct{}, len(batch.Deleted))
		for _, id := range batch.Deleted {
			gone[id] = struct{}{}
		}
		n := len(ix.bp) + len(ix.hr)
		ix.bp = slices.DeleteFunc(ix.bp, func(s domain.BloodPressureSample) bool {
			_, ok := gone[s.ID]
			return ok
		})
		ix.hr = slices.DeleteFunc(ix.hr, func(s domain.HeartRateSample) bool {
			_, ok := gone[s.ID]
			return ok
		})
		st.Removed = n - len(ix.bp) - len(ix.hr)
	}
	return st
}

// Len returns the number of samples held.
func (ix *ReadingIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.bp) + len(ix.hr)
}

// AllTimestamps returns the sorted, de-duplicated instants at which either a
// blood-pressure pair or a heart-rate sample exists.
func (ix *ReadingIndex) AllTimestamps() []time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.timestamps()
}

func (ix *ReadingIndex) timestamps() []time.Time {
	seen := make(map[int64]struct{}, len(ix.bp)+len(ix.hr))
	out := make([]time.Time, 0, len(ix.bp)+len(ix.hr))
	add := func(t time.Time) {
		if _, ok := seen[t.UnixNano()]; ok {
			return
		}
		seen[t.UnixNano()] = struct{}{}
		out = append(out, t)
	}
	for _, s := range ix.bp {
		add(s.TakenAt)
	}
	for _, s := range ix.hr {
		add(s.TakenAt)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// TimestampsIn returns the instants within [from, to].
func (ix *ReadingIndex) TimestampsIn(from, to time.Time) []time.Time {
	all := ix.AllTimestamps()
	out := all[:0]
	for _, t := range all {
		if !t.Before(from) && !t.After(to) {
			out = append(out, t)
		}
	}
	return out
}

// Lookup returns what is known at exactly at. ok is false when no sample
// carries that timestamp.
func (ix *ReadingIndex) Lookup(at time.Time) (p domain.PartialReading, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.lookup(at)
}

func (ix *ReadingIndex) lookup(at time.Time) (domain.PartialReading, bool) {
	p := domain.PartialReading{TakenAt: at}
	for _, s := range ix.bp {
		if s.TakenAt.Equal(at) {
			p.BloodPressure = &domain.BloodPressure{Systolic: s.Systolic, Diastolic: s.Diastolic}
			break
		}
	}
	for _, s := range ix.hr {
		if s.TakenAt.Equal(at) {
			bpm := s.BPM
			p.HeartRate = &bpm
			break
		}
	}
	return p, p.BloodPressure != nil || p.HeartRate != nil
}

// Reading returns the merged reading at exactly at, with 0 for any field
// that has no sample.
func (ix *ReadingIndex) Reading(at time.Time) domain.Reading {
	p, _ := ix.Lookup(at)
	return p.Reading()
}

// NearestTimestamp returns the held instant closest to target, provided its
// distance is strictly less than tolerance. Of two equidistant instants the
// earlier one wins.
func (ix *ReadingIndex) NearestTimestamp(target time.Time, tolerance time.Duration) (time.Time, bool) {
	var (
		best  time.Time
		bestD time.Duration
		found bool
	)
	for _, t := range ix.AllTimestamps() {
		d := t.Sub(target)
		if d < 0 {
			d = -d
		}
		if d >= tolerance {
			continue
		}
		if !found || d < bestD {
			best, bestD, found = t, d, true
		}
	}
	return best, found
}

// Readings returns the merged readings in [from, to], ordered by time and
// de-duplicated by value.
func (ix *ReadingIndex) Readings(from, to time.Time) []domain.Reading {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[domain.ReadingKey]struct{})
	var out []domain.Reading
	for _, t := range ix.timestamps() {
		if t.Before(from) || t.After(to) {
			continue
		}
		p, _ := ix.lookup(t)
		r := p.Reading()
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	return out
}
