package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
	"triage_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	byPhone map[string]string
	log     *logrus.Logger
}

func NewMemoryUserRepository(logger *logrus.Logger) domain.UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
		log:     logger,
	}
}

func (r *memoryUserRepository) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		r.log.Warnf("Repository: Attempted to create user with duplicate email: %s", user.Email)
		return nil, domain.ErrEmailTaken
	}
	if user.Phone != "" {
		if _, ok := r.byPhone[user.Phone]; ok {
			r.log.Warnf("Repository: Attempted to create user with duplicate phone: %s", user.Phone)
			return nil, domain.ErrPhoneTaken
		}
	}

	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	if stored.Phone != "" {
		r.byPhone[stored.Phone] = stored.ID
	}

	r.log.Infof("Repository: User created successfully with ID: %s, Email: %s", stored.ID, stored.Email)
	out := stored
	return &out, nil
}

func (r *memoryUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byEmail, email, "email")
}

func (r *memoryUserRepository) GetUserByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byPhone, phone, "phone")
}

func (r *memoryUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// lookup must be called with r.mu held.
func (r *memoryUserRepository) lookup(index map[string]string, key, field string) (*domain.User, error) {
	id, ok := index[key]
	if !ok || key == "" {
		r.log.Debugf("Repository: User with %s %s not found", field, key)
		return nil, fmt.Errorf("user with %s %s: %w", field, key, domain.ErrNotFound)
	}
	out := *r.byID[id]
	return &out, nil
}
