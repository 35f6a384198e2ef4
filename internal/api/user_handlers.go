package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPut,
		Path:        "/api/v1/user",
		Summary:     "Register user",
		Description: "Creates a new user account when registration is open",
		Tags:        []string{"Users"},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/user/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns an access token",
		Tags:        []string{"Users"},
		Middlewares: huma.Middlewares{s.rateLimitByIP(s.loginLimiter)},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/user",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's information",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)
}

// === DTOs ===

// CredentialsRequest is the body for register and login.
type CredentialsRequest struct {
	Email    string `json:"email" maxLength:"254" doc:"Email address"`
	Password string `json:"password" maxLength:"1024" doc:"Password"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body CredentialsRequest
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body CredentialsRequest
}

// LoginResponse contains an issued access token.
type LoginResponse struct {
	Token     string `json:"token" doc:"PASETO access token, sent as 'Authorization: Bearer <token>'"`
	ExpiresAt int64  `json:"expires_at" doc:"Token expiry (epoch milliseconds)"`
	UserID    string `json:"user_id" doc:"Authenticated user ID"`
}

// LoginOutput wraps the login response for Huma.
type LoginOutput struct {
	Body LoginResponse
}

// AuthenticatedInput carries only the bearer token.
type AuthenticatedInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
}

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID          string `json:"id" doc:"User ID"`
	Email       string `json:"email" doc:"Email address"`
	CreateDate  int64  `json:"create_date" doc:"Registration time (epoch milliseconds)"`
	LastLoginAt *int64 `json:"last_login_date,omitempty" doc:"Last login time (epoch milliseconds)"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*IDOutput, error) {
	user, err := s.services.Auth.Register(ctx, service.RegisterRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &IDOutput{Body: IDResponse{ID: user.ID}}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &LoginOutput{
		Body: LoginResponse{
			Token:     resp.Token,
			ExpiresAt: resp.ExpiresAt.UnixMilli(),
			UserID:    resp.User.ID,
		},
	}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *AuthenticatedInput) (*UserOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}

	resp := UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		CreateDate: user.CreatedAt.UnixMilli(),
	}
	if !user.LastLoginAt.IsZero() {
		resp.LastLoginAt = epochMillis(&user.LastLoginAt)
	}
	return &UserOutput{Body: resp}, nil
}
