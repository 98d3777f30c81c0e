package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"triage_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// authUseCase implements domain.AuthUseCase
type authUseCase struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	now      func() time.Time
	log      *logrus.Logger
}

func NewAuthUseCase(users domain.UserRepository, sessions domain.SessionStore, logger *logrus.Logger) domain.AuthUseCase {
	return &authUseCase{
		users:    users,
		sessions: sessions,
		now:      time.Now,
		log:      logger,
	}
}

// Register creates the account and logs it in.
func (uc *authUseCase) Register(ctx context.Context, creds domain.RegisterCredentials) (*domain.Session, error) {
	email := normalizeEmail(creds.Email)
	name := strings.TrimSpace(creds.Name)
	phone := strings.TrimSpace(creds.Phone)
	uc.log.Infof("Use Case: Attempting registration for email: %s", email)

	if !emailPattern.MatchString(email) {
		uc.log.Warnf("Use Case: Registration failed - invalid email format: %s", email)
		return nil, domain.NewValidationError("invalid email format", "email")
	}
	if name == "" {
		uc.log.Warn("Use Case: Registration failed - empty name")
		return nil, domain.NewValidationError("name cannot be empty", "name")
	}
	if creds.Password == "" {
		uc.log.Warn("Use Case: Registration failed - empty password")
		return nil, domain.NewValidationError("password cannot be empty", "password")
	}
	if phone != "" && !mobilePattern.MatchString(phone) {
		uc.log.Warnf("Use Case: Registration failed - invalid phone: %s", phone)
		return nil, domain.NewValidationError("invalid mobile phone number", "phone")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to hash password for %s: %v", email, err)
		return nil, fmt.Errorf("internal error processing password: %w", err)
	}

	// uniqueness is enforced by the repository so concurrent registrations
	// cannot both succeed
	user, err := uc.users.CreateUser(ctx, &domain.User{
		Email:        email,
		Name:         name,
		Phone:        phone,
		PasswordHash: string(hashed),
		CreatedAt:    uc.now().UTC(),
	})
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to create user %s: %v", email, err)
		return nil, err
	}
	uc.log.Infof("Use Case: User registered successfully. ID: %s, Email: %s", user.ID, user.Email)

	return uc.openSession(ctx, user)
}

// Login accepts either the email address or the phone number as identifier.
func (uc *authUseCase) Login(ctx context.Context, creds domain.LoginCredentials) (*domain.Session, error) {
	identifier := strings.TrimSpace(creds.Identifier)
	uc.log.Infof("Use Case: Attempting login for identifier: %s", identifier)

	if identifier == "" || creds.Password == "" {
		uc.log.Warn("Use Case: Login failed - empty identifier or password")
		return nil, domain.ErrInvalidCredentials
	}

	var user *domain.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = uc.users.GetUserByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = uc.users.GetUserByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warnf("Use Case: Login failed - user not found: %s", identifier)
			return nil, domain.ErrInvalidCredentials
		}
		uc.log.Errorf("Use Case: Error retrieving user %s during login: %v", identifier, err)
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			uc.log.Warnf("Use Case: Login failed - incorrect password for user %s", user.ID)
			return nil, domain.ErrInvalidCredentials
		}
		uc.log.Errorf("Use Case: Error comparing password hash for user %s: %v", user.ID, err)
		return nil, fmt.Errorf("internal error during authentication: %w", err)
	}

	return uc.openSession(ctx, user)
}

func (uc *authUseCase) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := uc.sessions.Delete(ctx, token); err != nil {
		uc.log.Errorf("Use Case: Failed to delete session: %v", err)
		return fmt.Errorf("failed to end session: %w", err)
	}
	uc.log.Info("Use Case: Session ended")
	return nil
}

func (uc *authUseCase) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	sess, err := uc.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// the session carries the user as of login; reread it so a removed
	// account no longer authenticates
	user, err := uc.users.GetUserByID(ctx, sess.User.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warnf("Use Case: Session %s refers to unknown user %s, dropping it", shortToken(token), sess.User.ID)
			_ = uc.sessions.Delete(ctx, token)
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	refreshed := *sess
	refreshed.User = *user
	refreshed.User.PasswordHash = ""
	return &refreshed, nil
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

func (uc *authUseCase) IsAuthenticated(ctx context.Context, token string) bool {
	_, err := uc.Authenticate(ctx, token)
	return err == nil
}

func (uc *authUseCase) openSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	sess := &domain.Session{
		Token:     uuid.NewString(),
		User:      *user,
		CreatedAt: uc.now().UTC(),
	}
	sess.User.PasswordHash = ""
	if err := uc.sessions.Put(ctx, sess); err != nil {
		uc.log.Errorf("Use Case: Failed to store session for user %s: %v", user.ID, err)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	uc.log.Infof("Use Case: Session started for user %s", user.ID)
	return sess, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
