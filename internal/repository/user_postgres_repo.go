package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"triage_service/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL,
    name          TEXT NOT NULL,
    phone         TEXT,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT users_email_key UNIQUE (email),
    CONSTRAINT users_phone_key UNIQUE (phone)
)`

type postgresUserRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresUserRepository(db *sql.DB, logger *logrus.Logger) domain.UserRepository {
	return &postgresUserRepository{
		db:  db,
		log: logger,
	}
}

// EnsureUserSchema creates the users table if it does not exist.
func EnsureUserSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("could not create users table: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
        INSERT INTO users (id, email, name, phone, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.log.Debugf("Repository: Attempting to create user with email: %s", user.Email)

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Name, nullString(user.Phone), user.PasswordHash,
	).Scan(&user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "phone") {
				r.log.Warnf("Repository: Attempted to create user with duplicate phone: %s", user.Phone)
				return nil, domain.ErrPhoneTaken
			}
			r.log.Warnf("Repository: Attempted to create user with duplicate email: %s", user.Email)
			return nil, domain.ErrEmailTaken
		}

		r.log.Errorf("Repository: Failed to create user '%s': %v", user.Email, err)
		return nil, fmt.Errorf("could not create user: %w", err)
	}

	r.log.Infof("Repository: User created successfully with ID: %s, Email: %s", user.ID, user.Email)
	return user, nil
}

func (r *postgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *postgresUserRepository) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if phone == "" {
		return nil, fmt.Errorf("user with empty phone: %w", domain.ErrNotFound)
	}
	return r.getBy(ctx, "phone", phone)
}

func (r *postgresUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

// getBy only ever receives a column name from this file.
func (r *postgresUserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	query := `
        SELECT id, email, name, phone, password_hash, created_at
        FROM users
        WHERE ` + column + ` = $1`
	user := &domain.User{}
	var phone sql.NullString

	r.log.Debugf("Repository: Attempting to find user by %s: %s", column, value)

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&phone,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugf("Repository: User with %s %s not found", column, value)
			return nil, fmt.Errorf("user with %s %s: %w", column, value, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get user by %s %s: %v", column, value, err)
		return nil, fmt.Errorf("could not get user by %s: %w", column, err)
	}
	user.Phone = phone.String

	r.log.Debugf("Repository: User found by %s %s (ID: %s)", column, value, user.ID)
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
