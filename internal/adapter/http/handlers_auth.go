// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"bpdiary/internal/app"
	"bpdiary/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const sessionMaxAge = 86400

// OIDC holds the single sign-on provider. The zero value means SSO is off.
type OIDC struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// NewOIDC discovers the provider at cfg.Issuer.
func NewOIDC(ctx context.Context, cfg config.OIDCConfig) (*OIDC, error) {
	if !cfg.Enabled() {
		return &OIDC{}, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDC{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   sessionMaxAge,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := s.authSvc.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if errors.Is(err, app.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		s.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	setSessionCookie(w, r, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session"); err == nil {
		_ = s.authSvc.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetupUser(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	_, err := s.authSvc.CreateOwner(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, app.ErrOwnerExists):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, app.ErrWeakPassword), errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log.Error("owner setup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	s.log.Info("owner account created", zap.String("username", req.Username))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	needsSetup, err := s.authSvc.NeedsSetup(r.Context())
	if err != nil {
		s.log.Error("setup check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidcConfig.Enabled,
		"needs_setup": needsSetup,
		"auth":        !s.disableAuth,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		writeError(w, http.StatusBadRequest, errors.New("invalid state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.log.Warn("sso code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, errors.New("failed to exchange token"))
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		writeError(w, http.StatusBadGateway, errors.New("no id_token"))
		return
	}

	verifier := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID})
	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		s.log.Warn("sso token verification failed", zap.Error(err))
		writeError(w, http.StatusUnauthorized, errors.New("failed to verify token"))
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err = idToken.Claims(&claims); err != nil {
		writeError(w, http.StatusBadGateway, errors.New("failed to parse claims"))
		return
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		writeError(w, http.StatusForbidden, errors.New("email not verified"))
		return
	}

	sessionToken, err := s.authSvc.LoginSSO(r.Context(), claims.Email, r.UserAgent())
	if errors.Is(err, app.ErrInvalidCredentials) {
		writeError(w, http.StatusForbidden, errors.New("account not allowed"))
		return
	}
	if err != nil {
		s.log.Error("sso login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("login failed"))
		return
	}

	setSessionCookie(w, r, sessionToken)
	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
