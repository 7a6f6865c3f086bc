package memory

import (
	"context"
	"errors"
	"time"
)

// Importance bounds.
const (
	MinImportance = 1
	MaxImportance = 5
)

// Categories the extractor is asked to use.
var Categories = []string{"health_goal", "preference", "medical_history", "lifestyle", "concern"}

// ErrInvalidFact is returned for facts that break the storage invariants.
var ErrInvalidFact = errors.New("invalid fact")

// Fact is a deduplicated long-term memory entry, unique per
// (UserID, Category, Key).
type Fact struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	Category       string    `json:"category"`
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	Importance     int       `json:"importance"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Candidate is a fact proposed by extraction, not yet stored.
type Candidate struct {
	Category   string `json:"category"`
	Key        string `json:"key"`
	Value      string `json:"value"`
	Importance int    `json:"importance"`
}

// Repository persists facts. Upsert must be atomic on
// (UserID, Category, Key).
type Repository interface {
	// Upsert inserts f or overwrites value, importance and last_accessed_at
	// of the existing fact with the same key. f.ID and f.CreatedAt are set
	// to the stored identity.
	Upsert(ctx context.Context, f *Fact) error
	// Top returns up to n facts by importance desc, last_accessed_at desc.
	Top(ctx context.Context, userID int64, n int) ([]Fact, error)
	// Touch sets last_accessed_at for the given facts.
	Touch(ctx context.Context, ids []string, at time.Time) error
	// List returns all facts for a user.
	List(ctx context.Context, userID int64) ([]Fact, error)
}
