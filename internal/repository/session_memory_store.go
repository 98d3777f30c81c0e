package repository

import (
	"context"
	"fmt"
	"sync"
	"triage_service/internal/domain"

	"github.com/sirupsen/logrus"
)

// memorySessionStore keeps sessions keyed by token. Concurrent writers for
// the same token race with last-writer-wins semantics.
type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	log      *logrus.Logger
}

func NewMemorySessionStore(logger *logrus.Logger) domain.SessionStore {
	return &memorySessionStore{
		sessions: make(map[string]domain.Session),
		log:      logger,
	}
}

func (s *memorySessionStore) Put(_ context.Context, session *domain.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("session token cannot be empty")
	}
	s.mu.Lock()
	s.sessions[session.Token] = *session
	s.mu.Unlock()
	s.log.Debugf("Repository: Session stored for user %s", session.User.ID)
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return &sess, nil
}

func (s *memorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
