package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"bpdiary/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	createFn        func(ctx context.Context, username, passwordHash string) (*domain.User, error)
	countFn         func(ctx context.Context) (int, error)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash)
	}
	return &domain.User{ID: 1, Username: username, PasswordHash: passwordHash}, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, s domain.Session) error
	getByTokenFn func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn     func(ctx context.Context, token string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	return nil
}

func ownerWithPassword(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return &domain.User{ID: 1, Username: "owner", PasswordHash: string(hash)}
}

func TestAuthService_Login_Success(t *testing.T) {
	owner := ownerWithPassword(t, "testpass123")
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, _ string) (*domain.User, error) { return owner, nil },
	}
	var created domain.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s domain.Session) error {
			created = s
			return nil
		},
	}

	svc := NewAuthService(users, sessions, "")
	token, err := svc.Login(context.Background(), "owner", "testpass123", "firefox")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" || created.Token != token {
		t.Fatalf("session not stored with token: %+v", created)
	}
	if created.UserID != 1 || created.UserAgent != "firefox" {
		t.Errorf("unexpected session %+v", created)
	}
	if !created.ExpiresAt.After(created.CreatedAt) {
		t.Error("session must expire after creation")
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	owner := ownerWithPassword(t, "correctpass")
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, _ string) (*domain.User, error) { return owner, nil },
	}
	svc := NewAuthService(users, &mockSessionRepo{}, "")

	_, err := svc.Login(context.Background(), "owner", "wrongpass", "ua")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_SSOOnlyAccount(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, u string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: u}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, "")

	_, err := svc.Login(context.Background(), "owner@example.com", "", "ua")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for account without password, got %v", err)
	}
}

func TestAuthService_ValidateSession(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		session     *domain.Session
		userAgent   string
		wantErr     error
		wantDeleted bool
	}{
		{"valid", &domain.Session{Token: "t", UserID: 1, UserAgent: "ua", ExpiresAt: now.Add(time.Hour)}, "ua", nil, false},
		{"missing", nil, "ua", ErrSessionNotFound, false},
		{"expired", &domain.Session{Token: "t", UserID: 1, UserAgent: "ua", ExpiresAt: now.Add(-time.Hour)}, "ua", ErrSessionExpired, true},
		{"other browser", &domain.Session{Token: "t", UserID: 1, UserAgent: "ua", ExpiresAt: now.Add(time.Hour)}, "curl", ErrSessionExpired, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			sessions := &mockSessionRepo{
				getByTokenFn: func(_ context.Context, _ string) (*domain.Session, error) { return tc.session, nil },
				deleteFn: func(_ context.Context, _ string) error {
					deleted = true
					return nil
				},
			}
			users := &mockUserRepo{
				getByIDFn: func(_ context.Context, id int64) (*domain.User, error) {
					return &domain.User{ID: id, Username: "owner"}, nil
				},
			}
			svc := NewAuthService(users, sessions, "")
			svc.now = func() time.Time { return now }

			user, err := svc.ValidateSession(context.Background(), "t", tc.userAgent)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && (user == nil || user.Username != "owner") {
				t.Fatalf("unexpected user %v", user)
			}
			if deleted != tc.wantDeleted {
				t.Errorf("deleted = %v; want %v", deleted, tc.wantDeleted)
			}
		})
	}
}

func TestAuthService_CreateOwner(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(_ context.Context, username, hash string) (*domain.User, error) {
			if username != "admin" {
				t.Errorf("expected username 'admin', got %s", username)
			}
			if hash == "" || hash == "password123" {
				t.Error("password must be stored hashed")
			}
			return &domain.User{ID: 1, Username: username}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, "")

	if _, err := svc.CreateOwner(context.Background(), "admin", "password123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthService_CreateOwner_Rejected(t *testing.T) {
	existing := &mockUserRepo{countFn: func(_ context.Context) (int, error) { return 1, nil }}
	svc := NewAuthService(existing, &mockSessionRepo{}, "")
	if _, err := svc.CreateOwner(context.Background(), "admin", "password123"); !errors.Is(err, ErrOwnerExists) {
		t.Errorf("expected ErrOwnerExists, got %v", err)
	}

	svc = NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, "")
	if _, err := svc.CreateOwner(context.Background(), "admin", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestAuthService_LoginSSO(t *testing.T) {
	t.Run("wrong email", func(t *testing.T) {
		svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, "owner@example.com")
		_, err := svc.LoginSSO(context.Background(), "someone@example.com", "ua")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("first login becomes owner", func(t *testing.T) {
		createdName := ""
		users := &mockUserRepo{
			createFn: func(_ context.Context, username, _ string) (*domain.User, error) {
				createdName = username
				return &domain.User{ID: 7, Username: username}, nil
			},
		}
		svc := NewAuthService(users, &mockSessionRepo{}, "Owner@Example.com")
		token, err := svc.LoginSSO(context.Background(), "owner@example.com", "ua")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token == "" || createdName != "owner@example.com" {
			t.Fatalf("token=%q created=%q", token, createdName)
		}
	})

	t.Run("no second account", func(t *testing.T) {
		users := &mockUserRepo{
			countFn: func(_ context.Context) (int, error) { return 1, nil },
			createFn: func(_ context.Context, _, _ string) (*domain.User, error) {
				t.Fatal("must not create a second account")
				return nil, nil
			},
		}
		svc := NewAuthService(users, &mockSessionRepo{}, "")
		if _, err := svc.LoginSSO(context.Background(), "intruder@example.com", "ua"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
