package typing

import (
	"context"
	"sync"
	"time"
)

// State is the assistant's typing indicator for one user.
type State struct {
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps one indicator per user; the last write wins.
type Store interface {
	Set(ctx context.Context, userID int64, isTyping bool) error
	// Get returns the indicator, or a zero State if none was ever set.
	Get(ctx context.Context, userID int64) (State, error)
}

// MemStore is an in-process Store.
type MemStore struct {
	mu     sync.RWMutex
	states map[int64]State
	now    func() time.Time
}

// NewMemStore creates an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{states: make(map[int64]State), now: time.Now}
}

func (s *MemStore) Set(_ context.Context, userID int64, isTyping bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = State{IsTyping: isTyping, UpdatedAt: s.now()}
	return nil
}

func (s *MemStore) Get(_ context.Context, userID int64) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID], nil
}
