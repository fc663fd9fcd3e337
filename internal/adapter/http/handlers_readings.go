package adapthttp

import (
	"net/http"
	"time"

	"bpdiary/internal/domain"
)

func (s *Server) handleReadingRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Systolic  int        `json:"systolic"`
		Diastolic int        `json:"diastolic"`
		HeartRate int        `json:"heartRate"`
		TakenAt   *time.Time `json:"takenAt"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m := domain.Measurement{Systolic: body.Systolic, Diastolic: body.Diastolic, HeartRate: body.HeartRate}
	if body.TakenAt != nil {
		m.TakenAt = *body.TakenAt
	}
	if err := s.readings.RecordReading(r.Context(), m); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleReadingsDay(w http.ResponseWriter, r *http.Request) {
	day, err := dayQuery(r, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	items := s.summary.ReadingsForDay(r.Context(), day)
	writeJSON(w, http.StatusOK, map[string]any{"day": localDayString(day), "items": items})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	day, err := dayQuery(r, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slots, err := s.summary.Day(r.Context(), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	taken := 0
	for _, sl := range slots {
		if sl.Taken {
			taken++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":   localDayString(day),
		"slots": slots,
		"taken": taken,
		"total": len(slots),
	})
}
