package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	store map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	m.store[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phone string) (*User, error) {
	for _, u := range m.store {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var r []*User
	for _, u := range m.store {
		r = append(r, u)
	}
	return r, len(r), nil
}

func (m *mockUserRepo) SetRoles(_ context.Context, id uuid.UUID, roles []string) error {
	u, ok := m.store[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	u.Roles = nil
	for _, r := range roles {
		u.Roles = append(u.Roles, auth.Role(r))
	}
	return nil
}

func newTestService() *Service {
	cfg := TokenConfig{
		Secret:   []byte("test-secret-test-secret-test-secret"),
		Issuer:   "carelink",
		Audience: "carelink-api",
		TTL:      time.Hour,
	}
	return NewService(newMockUserRepo(), cfg, zerolog.Nop())
}

func admin() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Roles: []auth.Role{auth.RoleAdmin}}
}

func expert() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Roles: []auth.Role{auth.RoleExpert}}
}

// -- Service Tests --

func TestCreate_DefaultsToUserRole(t *testing.T) {
	svc := newTestService()
	u, err := svc.Create(context.Background(), expert(), CreateInput{
		Phone:    "09123456789",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.Roles) != 1 || u.Roles[0] != auth.RoleUser {
		t.Errorf("expected USER role, got %v", u.Roles)
	}
	if u.PasswordHash == "correct horse" {
		t.Error("password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}

func TestCreate_ElevatedRolesNeedAdmin(t *testing.T) {
	svc := newTestService()
	in := CreateInput{
		Phone:    "09123456789",
		Password: "correct horse",
		Roles:    []auth.Role{auth.RoleExpert},
	}

	if _, err := svc.Create(context.Background(), expert(), in); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected forbidden for non-admin grantor, got %v", err)
	}

	u, err := svc.Create(context.Background(), admin(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.Roles) != 1 || u.Roles[0] != auth.RoleExpert {
		t.Errorf("expected EXPERT role, got %v", u.Roles)
	}
}

func TestCreate_DuplicatePhone(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	in := CreateInput{Phone: "09123456789", Password: "correct horse"}
	if _, err := svc.Create(ctx, admin(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(ctx, admin(), in)
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error for duplicate phone, got %v", err)
	}
}

func TestCreate_RejectsBadPhone(t *testing.T) {
	svc := newTestService()
	for _, phone := range []string{"", "12345", "0912345678", "091234567890", "+989123456789"} {
		_, err := svc.Create(context.Background(), admin(), CreateInput{Phone: phone, Password: "correct horse"})
		if !apperr.Is(err, apperr.Validation) {
			t.Errorf("phone %q: expected validation error, got %v", phone, err)
		}
	}
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Create(ctx, admin(), CreateInput{Phone: "09123456789", Password: "correct horse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, token, err := svc.Authenticate(ctx, "09123456789", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}
	if u.Phone != "09123456789" {
		t.Errorf("unexpected user: %v", u.Phone)
	}

	if _, _, err := svc.Authenticate(ctx, "09123456789", "wrong"); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("expected unauthenticated for bad password, got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, "09999999999", "correct horse"); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("expected unauthenticated for unknown phone, got %v", err)
	}
}
