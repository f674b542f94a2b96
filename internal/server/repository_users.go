package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

// userRepository is the PostgreSQL implementation of UserStorage.
type userRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	log *logger.Logger
}

func NewUserRepository(db *sql.DB, log *logger.Logger) UserStorage {
	log.Debug().Msg("creating user repository")
	return &userRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log: log,
	}
}

// CreateUser persists a new account and returns it with the server-assigned
// id. A unique violation on the login column maps to ErrLoginAlreadyExists.
func (r *userRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query, args, err := r.sb.
		Insert("users").
		Columns("login", "password_hash").
		Values(user.Login, user.PasswordHash).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build create user query: %w", err)
	}

	if err = r.db.QueryRowContext(ctx, query, args...).Scan(&user.UserID); err != nil {
		if postgresError(err) == pgerrcode.UniqueViolation {
			return models.User{}, ErrLoginAlreadyExists
		}
		r.log.Err(err).Str("func", "*userRepository.CreateUser").Msg("unexpected DB error")
		return models.User{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	user.Password = ""
	return user, nil
}

// FindUserByLogin loads the stored account for login, including the bcrypt
// hash for credential checks.
func (r *userRepository) FindUserByLogin(ctx context.Context, login string) (models.User, error) {
	query, args, err := r.sb.
		Select("id", "login", "password_hash").
		From("users").
		Where(sq.Eq{"login": login}).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build find user query: %w", err)
	}

	var user models.User
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&user.UserID, &user.Login, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNoUserWasFound
	}
	if err != nil {
		r.log.Err(err).Str("func", "*userRepository.FindUserByLogin").Msg("unexpected DB error")
		return models.User{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	return user, nil
}
