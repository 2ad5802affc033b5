package user

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// TokenConfig holds the signing parameters for issued access tokens.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

type Service struct {
	users  UserRepository
	tokens TokenConfig
	logger zerolog.Logger
}

func NewService(users UserRepository, tokens TokenConfig, logger zerolog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Phone    string
	Name     *string
	Password string
	Roles    []auth.Role
}

// Create registers an account. Elevated roles may only be granted by an
// admin; everyone else gets USER regardless of what was asked for.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*User, error) {
	if !identity.ValidPhone(in.Phone) {
		return nil, apperr.E(apperr.Validation, "invalid phone number")
	}
	if len(in.Password) < 8 {
		return nil, apperr.E(apperr.Validation, "password must be at least 8 characters")
	}
	if _, err := s.users.GetByPhone(ctx, in.Phone); err == nil {
		return nil, apperr.E(apperr.Validation, "phone_exists")
	}

	roles := []auth.Role{auth.RoleUser}
	if len(in.Roles) > 0 {
		if !actor.HasRole(auth.RoleAdmin) {
			return nil, apperr.E(apperr.Forbidden, "only admins may grant roles")
		}
		for _, r := range in.Roles {
			if !auth.ValidRole(string(r)) {
				return nil, apperr.Ef(apperr.Validation, "unknown role %q", r)
			}
		}
		roles = in.Roles
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Phone:        in.Phone,
		Name:         in.Name,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("user created")
	return u, nil
}

// Authenticate checks credentials and returns the user with a signed
// access token.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (*User, string, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, "", apperr.E(apperr.Unauthenticated, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.E(apperr.Unauthenticated, "invalid credentials")
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) issueToken(u *User) (string, error) {
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.tokens.Issuer,
			Audience:  jwt.ClaimStrings{s.tokens.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.TTL)),
		},
		Phone: u.Phone,
		Roles: roleStrings(u.Roles),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokens.Secret)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	return u, nil
}

func (s *Service) GetByPhone(ctx context.Context, phone string) (*User, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}
