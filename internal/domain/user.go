package domain

import (
	"context"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the authenticated context handed to operations that need an
// owner. It carries a copy of the user taken at login time.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

type RegisterCredentials struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

type LoginCredentials struct {
	// Identifier is either the email address or the phone number.
	Identifier string
	Password   string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}

type SessionStore interface {
	Put(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

type AuthUseCase interface {
	Register(ctx context.Context, creds RegisterCredentials) (*Session, error)
	Login(ctx context.Context, creds LoginCredentials) (*Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Session, error)
	IsAuthenticated(ctx context.Context, token string) bool
}
