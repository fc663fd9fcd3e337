package adapthttp

import (
	"errors"
	"net/http"

	"bpdiary/internal/app"
	"bpdiary/internal/domain"
)

func (s *Server) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	slots, err := s.slots.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleSlotCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string           `json:"name"`
		ReferenceTime domain.TimeOfDay `json:"referenceTime"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slot, err := s.slots.Create(r.Context(), body.Name, body.ReferenceTime)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleSlotGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slot, err := s.slots.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) handleSlotPatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Name            *string           `json:"name"`
		ReferenceTime   *domain.TimeOfDay `json:"referenceTime"`
		ReminderMessage *string           `json:"reminderMessage"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slot, err := s.slots.Update(r.Context(), id, app.SlotPatch{
		Name:            body.Name,
		ReferenceTime:   body.ReferenceTime,
		ReminderMessage: body.ReminderMessage,
	})
	s.writeSlotResult(w, r, slot, err)
}

func (s *Server) handleSlotDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.slots.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSlotTracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}
	slot, err := s.slots.SetTracking(r.Context(), id, *body.Enabled)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) handleSlotTime(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		ReferenceTime *domain.TimeOfDay `json:"referenceTime"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.ReferenceTime == nil {
		writeError(w, http.StatusBadRequest, errors.New("referenceTime is required"))
		return
	}
	slot, err := s.slots.UpdateTime(r.Context(), id, *body.ReferenceTime)
	s.writeSlotResult(w, r, slot, err)
}

// writeSlotResult answers an edit. An edit that was saved but could not
// reschedule the reminder returns the untracked slot along with the error.
func (s *Server) writeSlotResult(w http.ResponseWriter, r *http.Request, slot *domain.TimeSlot, err error) {
	if err != nil && slot != nil {
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "slot": slot})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
