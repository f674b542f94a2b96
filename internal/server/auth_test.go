package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/utils"
	"github.com/binarjoin/syncengine/models"
)

// stubUserStorage keeps accounts in a map, assigning sequential ids.
type stubUserStorage struct {
	users  map[string]models.User
	nextID int64
}

func newStubUserStorage() *stubUserStorage {
	return &stubUserStorage{users: make(map[string]models.User), nextID: 1}
}

func (s *stubUserStorage) CreateUser(_ context.Context, user models.User) (models.User, error) {
	if _, ok := s.users[user.Login]; ok {
		return models.User{}, ErrLoginAlreadyExists
	}
	user.UserID = s.nextID
	s.nextID++
	s.users[user.Login] = user
	return user, nil
}

func (s *stubUserStorage) FindUserByLogin(_ context.Context, login string) (models.User, error) {
	user, ok := s.users[login]
	if !ok {
		return models.User{}, ErrNoUserWasFound
	}
	return user, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *stubUserStorage) {
	t.Helper()
	users := newStubUserStorage()
	return NewAuthService(users, "test-sign-key", "syncengine", time.Hour, logger.Nop()), users
}

func TestAuthService_Register_HashesPasswordAndIssuesToken(t *testing.T) {
	svc, users := newTestAuthService(t)

	created, token, err := svc.Register(context.Background(), models.User{Login: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.UserID)
	assert.NotEmpty(t, token)

	stored := users.users["alice"]
	assert.NotEqual(t, "s3cret", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")))

	userID, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.UserID, userID)
}

func TestAuthService_Register_EmptyCredentialsRejected(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, _, err := svc.Register(context.Background(), models.User{Login: "alice"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Register(context.Background(), models.User{Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Register_DuplicateLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, models.User{Login: "alice", Password: "pw"})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, models.User{Login: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrLoginAlreadyExists)
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, models.User{Login: "alice", Password: "s3cret"})
	require.NoError(t, err)

	user, token, err := svc.Login(ctx, models.User{Login: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.UserID)
	assert.Empty(t, user.PasswordHash)

	userID, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
}

func TestAuthService_Login_WrongPasswordAndUnknownLoginLookAlike(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, models.User{Login: "alice", Password: "s3cret"})
	require.NoError(t, err)

	_, _, wrongPw := svc.Login(ctx, models.User{Login: "alice", Password: "nope"})
	_, _, unknown := svc.Login(ctx, models.User{Login: "bob", Password: "nope"})

	assert.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
}

func TestAuthService_ParseToken_RejectsForeignToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	other := NewAuthService(newStubUserStorage(), "different-key", "syncengine", time.Hour, logger.Nop())

	_, token, err := other.Register(context.Background(), models.User{Login: "mallory", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthService_ParseToken_Expired(t *testing.T) {
	svc, _ := newTestAuthService(t)

	token, err := utils.GenerateJWTToken("syncengine", 1, -time.Minute, "test-sign-key")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenIsExpired)
}
