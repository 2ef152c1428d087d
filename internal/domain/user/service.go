package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(s auth.Subject) (string, time.Time, error)
}

type Service struct {
	users  Repository
	tokens TokenIssuer
	cost   int
	log    zerolog.Logger

	// dummyHash is compared against when the username is unknown so that
	// login takes the same time either way.
	dummyHash []byte
}

func NewService(users Repository, tokens TokenIssuer, log zerolog.Logger) *Service {
	return newService(users, tokens, bcrypt.DefaultCost, log)
}

func newService(users Repository, tokens TokenIssuer, cost int, log zerolog.Logger) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &Service{users: users, tokens: tokens, cost: cost, log: log, dummyHash: dummy}
}

// Register creates a staff account and signs the caller in. Self-registration
// cannot create admins.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	role := req.Role
	if role == "" {
		role = auth.RoleReceptionist
	}
	if role == auth.RoleAdmin {
		return nil, apierror.Invalid("role", "admin accounts cannot be self-registered")
	}
	u, err := s.CreateUser(ctx, req.Username, req.Password, req.FullName, role)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateUser hashes password and stores a new active user with role.
func (s *Service) CreateUser(ctx context.Context, username, password, fullName, role string) (*User, error) {
	if !auth.ValidRole(role) {
		return nil, apierror.Invalid("role", "unknown role %q", role)
	}
	if len(password) < 8 {
		return nil, apierror.Invalid("password", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Username:     strings.TrimSpace(username),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID.String()).Str("username", u.Username).Str("role", role).Msg("user created")
	return u, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, db.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, apierror.Unauthorized("invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Warn().Str("username", u.Username).Msg("failed login")
		return nil, apierror.Unauthorized("invalid username or password")
	}
	if !u.Active {
		return nil, apierror.Forbidden("account is disabled")
	}
	return s.issue(u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("user", id.String())
	}
	return u, err
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) issue(u *User) (*TokenResponse, error) {
	token, exp, err := s.tokens.Issue(auth.Subject{
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.FullName,
	})
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresAt: exp, User: u}, nil
}
