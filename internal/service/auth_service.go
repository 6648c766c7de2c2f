package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskservice/internal/auth"
	apperrors "taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/repository"
	"taskservice/internal/validation"
)

// TokenIssuer signs bearer tokens for identities. *auth.JWTService satisfies it.
type TokenIssuer interface {
	Issue(identity *model.Identity) (string, error)
}

// AuthService handles registration and credential verification.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.Identity, error)
	Login(ctx context.Context, email, password string) (token string, identity *model.Identity, err error)
}

// registration carries the rules a new account must satisfy. bcrypt refuses
// passwords over 72 bytes, so the limit is checked in bytes, not characters.
type registration struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=12,maxbytes=72"`
}

type authService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
	validate   *validator.Validate
	log        logging.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, bcryptCost int, log logging.Logger) AuthService {
	return &authService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		validate:   validation.New(),
		log:        log.With("component", "auth_service"),
	}
}

// NormalizeEmail trims and lowercases an address so lookups and the unique
// index agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with a hashed password.
func (s *authService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	if err := s.validate.Struct(registration{Email: email, Password: password}); err != nil {
		return nil, validation.Error(err)
	}

	// Check if user already exists
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrConflict
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.log.Error(ctx, "check user existence failed", "error", err.Error())
		return nil, apperrors.Internal("check user existence", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.log.Error(ctx, "hash password failed", "error", err.Error())
		return nil, apperrors.Internal("hash password", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
	}

	// The unique index closes the gap between the check above and this insert.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrConflict
		}
		s.log.Error(ctx, "create user failed", "error", err.Error())
		return nil, apperrors.Internal("create user", err)
	}

	return user, nil
}

// Authenticate verifies credentials and returns the caller's identity.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.MissingField("email")
	}
	if password == "" {
		return nil, apperrors.MissingField("password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		s.log.Error(ctx, "find user by email failed", "error", err.Error())
		return nil, apperrors.Internal("find user by email", err)
	}

	ok, err := auth.ComparePassword(user.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "compare password failed", "user_id", user.ID.String(), "error", err.Error())
		return nil, apperrors.Internal("compare password", err)
	}
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}

	return user.Identity(), nil
}

// Login authenticates and issues a bearer token. A signing failure is logged
// and reported to the caller as an authentication failure.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.Identity, error) {
	identity, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(identity)
	if err != nil {
		s.log.Error(ctx, "issue token failed", "user_id", identity.ID, "error", err.Error())
		return "", nil, apperrors.ErrUnauthenticated
	}
	return token, identity, nil
}
