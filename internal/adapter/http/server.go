package adapthttp

import (
	"net/http"

	"bpdiary/internal/app"
	"bpdiary/internal/logger"

	"go.uber.org/zap"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	slots    *app.SlotService
	readings *app.ReadingService
	summary  *app.SummaryService
	authSvc  *app.AuthService
	health   healthChecker

	oidcConfig  *OIDC
	webDir      string
	disableAuth bool
	log         *zap.Logger
}

// healthChecker reports whether the health store can be reached.
type healthChecker interface {
	Available() bool
}

// New creates a Server wired to the given application services.
func New(slots *app.SlotService, readings *app.ReadingService, summary *app.SummaryService, authSvc *app.AuthService, webDir string, log *zap.Logger) *Server {
	return &Server{
		slots:      slots,
		readings:   readings,
		summary:    summary,
		authSvc:    authSvc,
		oidcConfig: &OIDC{},
		webDir:     webDir,
		log:        logger.OrNop(log),
	}
}

// WithoutAuth disables session checks. Used by tests and for deployments
// behind an authenticating proxy.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// WithOIDC enables single sign-on through o.
func (s *Server) WithOIDC(o *OIDC) *Server {
	if o != nil {
		s.oidcConfig = o
	}
	return s
}

// WithHealthCheck makes /api/health report the health store's reachability.
func (s *Server) WithHealthCheck(h healthChecker) *Server {
	s.health = h
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", s.handleHealth)

	api.HandleFunc("GET /auth/config", s.handleConfig)
	api.HandleFunc("POST /auth/setup", s.handleSetupUser)
	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /auth/me", s.handleMe)

	protected.HandleFunc("GET /slots", s.handleSlotsList)
	protected.HandleFunc("POST /slots", s.handleSlotCreate)
	protected.HandleFunc("GET /slots/{id}", s.handleSlotGet)
	protected.HandleFunc("PATCH /slots/{id}", s.handleSlotPatch)
	protected.HandleFunc("DELETE /slots/{id}", s.handleSlotDelete)
	protected.HandleFunc("PUT /slots/{id}/tracking", s.handleSlotTracking)
	protected.HandleFunc("PUT /slots/{id}/time", s.handleSlotTime)

	protected.HandleFunc("POST /readings", s.handleReadingRecord)
	protected.HandleFunc("GET /readings", s.handleReadingsDay)
	protected.HandleFunc("GET /summary", s.handleSummary)

	api.Handle("/", s.authMiddleware(protected))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", spaFromDisk(s.webDir))

	return s.loggingMiddleware(withNoCache(root))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"ok": true}
	if s.health != nil {
		ok := s.health.Available()
		body["healthStore"] = ok
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}
