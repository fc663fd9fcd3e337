package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"bpdiary/internal/domain"

	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateSlotName):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSlot), errors.Is(err, domain.ErrInvalidMeasurement):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthorizationDenied), errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrHealthDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrSchedulingFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal failures are
// logged and their detail withheld from the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, domain.ErrPersistenceFailure)
		return
	}
	writeError(w, status, err)
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid slot id %q", r.PathValue("id"))
	}
	return id, nil
}

// dayQuery reads ?day=YYYY-MM-DD as a local calendar day. It defaults to
// today.
func dayQuery(r *http.Request, now time.Time) (time.Time, error) {
	v := r.URL.Query().Get("day")
	if v == "" {
		return now.In(time.Local), nil
	}
	d, err := time.ParseInLocation(dayLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, want YYYY-MM-DD", v)
	}
	return d, nil
}

func localDayString(t time.Time) string {
	return t.In(time.Local).Format(dayLayout)
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if _, err := os.Stat(staticPath); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
