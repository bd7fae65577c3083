// File: internal/infra/memory/session_store.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
)

// SessionStore keeps payment sessions in process memory.
// Values are copied on the way in and out so callers never share state.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

var _ repository.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*model.Session)}
}

func (s *SessionStore) Put(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("%w: session id required", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Update holds the write lock across the whole read-modify-write.
// If fn returns an error the stored session is left untouched.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return cur.Clone(), err
	}
	s.sessions[id] = next
	return next.Clone(), nil
}

func (s *SessionStore) All(ctx context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out, nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
