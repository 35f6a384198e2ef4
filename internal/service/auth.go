package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shelfapp/shelf-server/internal/auth"
	"github.com/shelfapp/shelf-server/internal/domain"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/id"
	"github.com/shelfapp/shelf-server/internal/store"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

// dummyHash is verified against when the email is unknown so both login
// failure paths cost one argon2 evaluation.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("not-a-real-password")
	return h
})

// AuthService handles user registration, login and token verification.
type AuthService struct {
	store            *sqlite.Store
	tokens           *auth.TokenService
	validator        *validation.Validator
	registrationOpen bool
	logger           *slog.Logger
	now              func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store *sqlite.Store,
	tokens *auth.TokenService,
	validator *validation.Validator,
	registrationOpen bool,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:            store,
		tokens:           tokens,
		validator:        validator,
		registrationOpen: registrationOpen,
		logger:           logger,
		now:              time.Now,
	}
}

// RegisterRequest contains new account credentials.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is an issued access token.
type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Register creates a user account when registration is open.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if !s.registrationOpen {
		return nil, domainerrors.Forbidden("Registration is closed")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           id.MustGenerate("user"),
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("Email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = auth.VerifyPassword(dummyHash(), req.Password)
			return nil, domainerrors.InvalidCredentials("Invalid email or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Info("login failed", "user_id", user.ID)
		return nil, domainerrors.InvalidCredentials("Invalid email or password")
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = now
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &LoginResponse{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate verifies an access token and returns the user ID it was
// issued to. Any failure is reported as ForbiddenError.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domainerrors.Forbidden("Authentication required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", domainerrors.Forbidden("Invalid or expired token").WithCause(err)
	}
	if _, err := s.store.GetUser(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domainerrors.Forbidden("Unknown user")
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	return claims.UserID, nil
}
