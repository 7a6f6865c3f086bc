// Package memstore holds in-process repositories used by tests and by the
// server when no database is configured.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/protocol"
	"github.com/dishahealth/coach/internal/user"
)

var (
	_ conversation.Repository = (*Turns)(nil)
	_ memory.Repository       = (*Facts)(nil)
	_ protocol.Repository     = (*Protocols)(nil)
	_ user.Repository         = (*Users)(nil)
)

// Turns is an in-process conversation.Repository.
type Turns struct {
	mu     sync.RWMutex
	nextID int64
	turns  map[int64][]conversation.Turn
	now    func() time.Time
}

func NewTurns() *Turns {
	return &Turns{turns: make(map[int64][]conversation.Turn), now: time.Now}
}

func (s *Turns) Append(_ context.Context, t *conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.turns[t.UserID] = append(s.turns[t.UserID], *t)
	return nil
}

func (s *Turns) Recent(_ context.Context, userID int64, n int) ([]conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[userID]
	if n <= 0 {
		return []conversation.Turn{}, nil
	}
	if n > len(all) {
		n = len(all)
	}
	return slices.Clone(all[len(all)-n:]), nil
}

func (s *Turns) Page(_ context.Context, userID int64, req conversation.PageRequest) (*conversation.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[userID]
	rows := make([]conversation.Turn, 0, req.Limit+1)
	for i := len(all) - 1; i >= 0 && len(rows) <= req.Limit; i-- {
		if req.BeforeID != nil && all[i].ID >= *req.BeforeID {
			continue
		}
		rows = append(rows, all[i])
	}
	return conversation.NewPage(rows, req.Limit, len(all)), nil
}

func (s *Turns) Count(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[userID]), nil
}

type factKey struct {
	userID        int64
	category, key string
}

// Facts is an in-process memory.Repository.
type Facts struct {
	mu    sync.Mutex
	facts map[factKey]*memory.Fact
}

func NewFacts() *Facts {
	return &Facts{facts: make(map[factKey]*memory.Fact)}
}

func (s *Facts) Upsert(_ context.Context, f *memory.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := factKey{f.UserID, f.Category, f.Key}
	if cur, ok := s.facts[k]; ok {
		cur.Value = f.Value
		cur.Importance = f.Importance
		cur.LastAccessedAt = f.LastAccessedAt
		f.ID = cur.ID
		f.CreatedAt = cur.CreatedAt
		return nil
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	stored := *f
	s.facts[k] = &stored
	return nil
}

func (s *Facts) Top(_ context.Context, userID int64, n int) ([]memory.Fact, error) {
	all := s.forUser(userID)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Importance != all[j].Importance {
			return all[i].Importance > all[j].Importance
		}
		if !all[i].LastAccessedAt.Equal(all[j].LastAccessedAt) {
			return all[i].LastAccessedAt.After(all[j].LastAccessedAt)
		}
		return all[i].ID < all[j].ID
	})
	if n < len(all) {
		all = all[:max(n, 0)]
	}
	return all, nil
}

func (s *Facts) Touch(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.facts {
		if slices.Contains(ids, f.ID) {
			f.LastAccessedAt = at
		}
	}
	return nil
}

func (s *Facts) List(_ context.Context, userID int64) ([]memory.Fact, error) {
	all := s.forUser(userID)
	sort.Slice(all, func(i, j int) bool {
		if all[i].Category != all[j].Category {
			return all[i].Category < all[j].Category
		}
		return all[i].Key < all[j].Key
	})
	return all, nil
}

func (s *Facts) forUser(userID int64) []memory.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []memory.Fact{}
	for _, f := range s.facts {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out
}

// Protocols is an in-process protocol.Repository.
type Protocols struct {
	mu     sync.RWMutex
	nextID int64
	items  []protocol.Protocol
}

func NewProtocols() *Protocols {
	return &Protocols{}
}

func (s *Protocols) ListActive(_ context.Context) ([]protocol.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Protocol, 0, len(s.items))
	for _, p := range s.items {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *Protocols) Seed(_ context.Context, protocols []protocol.Protocol) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range protocols {
		if slices.ContainsFunc(s.items, func(q protocol.Protocol) bool { return q.Name == p.Name }) {
			continue
		}
		s.nextID++
		p.ID = s.nextID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		s.items = append(s.items, p)
		added++
	}
	return added, nil
}

// Users is an in-process user.Repository.
type Users struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*user.User
	byName map[string]int64
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]*user.User), byName: make(map[string]int64)}
}

func (s *Users) GetOrCreate(_ context.Context, username string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[username]; ok {
		u := *s.byID[id]
		return &u, nil
	}
	s.nextID++
	u := &user.User{ID: s.nextID, Username: username, CreatedAt: time.Now()}
	s.byID[u.ID] = u
	s.byName[username] = u.ID
	out := *u
	return &out, nil
}

func (s *Users) Get(_ context.Context, id int64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Users) SetFullName(_ context.Context, id int64, fullName string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.FullName = fullName
	out := *u
	return &out, nil
}

func (s *Users) UpdateProfile(_ context.Context, id int64, p user.Profile) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	p.FullName = u.FullName
	p.OnboardingCompleted = true
	u.Profile = p
	out := *u
	return &out, nil
}
