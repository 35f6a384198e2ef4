package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfapp/shelf-server/internal/auth"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/validation"
)

func setupAuthTest(t *testing.T, registrationOpen bool) (*AuthService, *testEnv) {
	t.Helper()
	env := setupTestEnv(t)

	key, err := auth.LoadOrCreateKey(env.dataDir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	return NewAuthService(env.store, tokens, validation.New(), registrationOpen, testLogger), env
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, _ := setupAuthTest(t, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Email: " Reader@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	resp, err := svc.Login(ctx, LoginRequest{Email: "READER@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.Equal(t, user.ID, resp.User.ID)

	userID, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupAuthTest(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Email: "Reader@example.com", Password: "password2"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := setupAuthTest(t, true)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "not-an-email", Password: "password1"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAuthService_RegistrationClosed(t *testing.T) {
	svc, _ := setupAuthTest(t, false)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@example.com", Password: "password1"})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := setupAuthTest(t, true)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthService_AuthenticateRejectsBadTokens(t *testing.T) {
	svc, _ := setupAuthTest(t, true)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = svc.Authenticate(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}
