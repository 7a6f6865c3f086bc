package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service ranks and stores user facts.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a memory service over repo.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// Upsert stores a fact, replacing the value and importance of an existing
// fact with the same category and key.
func (s *Service) Upsert(ctx context.Context, userID int64, category, key, value string, importance int) (*Fact, error) {
	category = strings.TrimSpace(category)
	key = strings.TrimSpace(key)
	if category == "" || key == "" {
		return nil, fmt.Errorf("%w: category and key are required", ErrInvalidFact)
	}
	if importance < MinImportance || importance > MaxImportance {
		return nil, fmt.Errorf("%w: importance %d outside %d..%d", ErrInvalidFact, importance, MinImportance, MaxImportance)
	}

	now := s.now()
	f := &Fact{
		UserID:         userID,
		Category:       category,
		Key:            key,
		Value:          value,
		Importance:     importance,
		LastAccessedAt: now,
		CreatedAt:      now,
	}
	if err := s.repo.Upsert(ctx, f); err != nil {
		return nil, fmt.Errorf("upsert fact %s/%s: %w", category, key, err)
	}
	return f, nil
}

// PeekTopFacts returns the n highest ranked facts without side effects.
func (s *Service) PeekTopFacts(ctx context.Context, userID int64, n int) ([]Fact, error) {
	if n <= 0 {
		return nil, nil
	}
	facts, err := s.repo.Top(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("top facts: %w", err)
	}
	if len(facts) > n {
		facts = facts[:n]
	}
	return facts, nil
}

// Touch marks facts as surfaced now.
func (s *Service) Touch(ctx context.Context, facts []Fact) error {
	return s.touchAt(ctx, facts, s.now())
}

func (s *Service) touchAt(ctx context.Context, facts []Fact, at time.Time) error {
	if len(facts) == 0 {
		return nil
	}
	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	if err := s.repo.Touch(ctx, ids, at); err != nil {
		return fmt.Errorf("touch facts: %w", err)
	}
	return nil
}

// TopFacts returns the n highest ranked facts and marks them as surfaced,
// so recently shown facts rank ahead of equally important ones next time.
func (s *Service) TopFacts(ctx context.Context, userID int64, n int) ([]Fact, error) {
	facts, err := s.PeekTopFacts(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.touchAt(ctx, facts, now); err != nil {
		return nil, err
	}
	for i := range facts {
		facts[i].LastAccessedAt = now
	}
	return facts, nil
}

// List returns every fact stored for a user.
func (s *Service) List(ctx context.Context, userID int64) ([]Fact, error) {
	facts, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return facts, nil
}

// Store upserts extracted candidates, skipping ones that fail validation.
// It returns how many were stored.
func (s *Service) Store(ctx context.Context, userID int64, candidates []Candidate) int {
	stored := 0
	for _, c := range candidates {
		if _, err := s.Upsert(ctx, userID, c.Category, c.Key, c.Value, c.Importance); err != nil {
			s.logger.Warn("skipping extracted fact",
				zap.Int64("user", userID),
				zap.String("category", c.Category),
				zap.String("key", c.Key),
				zap.Error(err))
			continue
		}
		stored++
	}
	return stored
}
