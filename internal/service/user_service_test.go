package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"poetry-tutor/internal/domain"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	createErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func TestUserServiceRegister(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo, nil)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       " Poet@Example.com ",
		Password:    "moonlight-1",
		DisplayName: " Li Bai ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "poet@example.com" || user.DisplayName != "Li Bai" || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("moonlight-1")) != nil {
		t.Fatalf("expected bcrypt hash of password")
	}

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "poet@example.com", Password: "another-pass"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserServiceRegisterValidation(t *testing.T) {
	svc := NewUserService(nil, newMockUserRepo(), nil)
	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"email vacio", RegisterInput{Password: "longenough"}, ErrInvalidEmail},
		{"email sin arroba", RegisterInput{Email: "poet.example.com", Password: "longenough"}, ErrInvalidEmail},
		{"password corto", RegisterInput{Email: "a@b.c", Password: "short"}, ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUserServiceRegisterUniqueViolation(t *testing.T) {
	repo := newMockUserRepo()
	repo.createErr = &pgconn.PgError{Code: "23505"}
	svc := NewUserService(nil, repo, nil)
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Password: "longenough"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on unique violation, got %v", err)
	}
}

func TestUserServiceAuthenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(nil, repo, nil)
	registered, err := svc.Register(context.Background(), RegisterInput{Email: "poet@example.com", Password: "moonlight-1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "POET@example.com", "moonlight-1")
	if err != nil || user.ID != registered.ID {
		t.Fatalf("expected authenticated user, got %+v %v", user, err)
	}
	if _, err := svc.Authenticate(context.Background(), "poet@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "ghost@example.com", "moonlight-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUserServiceAuthenticateRateLimited(t *testing.T) {
	svc := NewUserService(nil, newMockUserRepo(), denyLimiter{})
	if _, err := svc.Authenticate(context.Background(), "poet@example.com", "x"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestUserServiceGetByID(t *testing.T) {
	svc := NewUserService(nil, newMockUserRepo(), nil)
	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	var nilSvc *UserService
	if _, err := nilSvc.GetByID(context.Background(), "x"); !errors.Is(err, ErrUserServiceNotConfigured) {
		t.Fatalf("expected not configured error, got %v", err)
	}
}
