// Package app holds the application services: the reading index and its
// feed subscription, slot management, day summaries, reading capture and
// owner authentication.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"bpdiary/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 24 * time.Hour

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired or moved to another browser.
	ErrSessionExpired = errors.New("session expired")
	// ErrOwnerExists indicates that the diary already has its owner account.
	ErrOwnerExists = errors.New("owner account already exists")
	// ErrWeakPassword indicates that a new password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// AuthService guards the diary behind its single owner account.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	ownerEmail string
	now        func() time.Time
}

// NewAuthService creates an AuthService. ownerEmail, when set, is the only
// identity accepted from single sign-on.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, ownerEmail string) *AuthService {
	return &AuthService{users: users, sessions: sessions, ownerEmail: strings.ToLower(ownerEmail), now: time.Now}
}

// CreateOwner creates the owner account. It fails once any account exists.
func (s *AuthService) CreateOwner(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrOwnerExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, username, string(hash))
}

// Login checks the owner's password and opens a session.
func (s *AuthService) Login(ctx context.Context, username, password, userAgent string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil || user.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.openSession(ctx, user.ID, userAgent)
}

// LoginSSO opens a session for an identity already verified by the OIDC
// provider. Only the owner may sign in; on a fresh install the first SSO
// login becomes the owner.
func (s *AuthService) LoginSSO(ctx context.Context, email, userAgent string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || (s.ownerEmail != "" && email != s.ownerEmail) {
		return "", ErrInvalidCredentials
	}
	user, err := s.users.GetByUsername(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		n, err := s.users.Count(ctx)
		if err != nil {
			return "", err
		}
		if n > 0 {
			return "", ErrInvalidCredentials
		}
		if user, err = s.users.Create(ctx, email, ""); err != nil {
			return "", err
		}
	}
	return s.openSession(ctx, user.ID, userAgent)
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession resolves a session token to its user. Sessions that have
// expired or are presented by another browser are deleted.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(s.now()) || sess.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// NeedsSetup reports whether the owner account has yet to be created.
func (s *AuthService) NeedsSetup(ctx context.Context) (bool, error) {
	n, err := s.users.Count(ctx)
	return n == 0, err
}

// PruneSessions drops expired sessions.
func (s *AuthService) PruneSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) openSession(ctx context.Context, userID int64, userAgent string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	err = s.sessions.Create(ctx, domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
