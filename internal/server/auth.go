package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/utils"
	"github.com/binarjoin/syncengine/models"
)

// AuthService handles account registration, credential verification and the
// JWT token lifecycle.
type AuthService struct {
	users UserStorage

	tokenSignKey  string
	tokenIssuer   string
	tokenDuration time.Duration

	log *logger.Logger
}

func NewAuthService(users UserStorage, signKey, issuer string, duration time.Duration, log *logger.Logger) *AuthService {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &AuthService{
		users:         users,
		tokenSignKey:  signKey,
		tokenIssuer:   issuer,
		tokenDuration: duration,
		log:           log,
	}
}

// Register creates the account and signs a token for it, so a fresh client
// can start syncing straight away.
func (s *AuthService) Register(ctx context.Context, user models.User) (models.User, string, error) {
	if user.Login == "" || user.Password == "" {
		return models.User{}, "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.Password = ""

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return models.User{}, "", err
	}

	token, err := utils.GenerateJWTToken(s.tokenIssuer, created.UserID, s.tokenDuration, s.tokenSignKey)
	if err != nil {
		return models.User{}, "", fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Int64("userID", created.UserID).Msg("user registered")
	return created, token, nil
}

// Login verifies the credentials and signs a token. Unknown logins and bad
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, user models.User) (models.User, string, error) {
	stored, err := s.users.FindUserByLogin(ctx, user.Login)
	if errors.Is(err, ErrNoUserWasFound) {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, "", err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(user.Password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateJWTToken(s.tokenIssuer, stored.UserID, s.tokenDuration, s.tokenSignKey)
	if err != nil {
		return models.User{}, "", fmt.Errorf("issue token: %w", err)
	}

	stored.PasswordHash = ""
	return stored, token, nil
}

// ParseToken validates a bearer token and returns the user id it carries.
// An expired token is reported as ErrTokenIsExpired so the middleware can
// tell the client to re-authenticate rather than treat the token as forged.
func (s *AuthService) ParseToken(tokenString string) (int64, error) {
	userID, err := utils.ValidateAndParseJWTToken(tokenString, s.tokenSignKey, s.tokenIssuer)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return 0, ErrTokenIsExpired
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}
