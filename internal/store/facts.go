package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dishahealth/coach/internal/memory"
)

var _ memory.Repository = (*FactStore)(nil)

// FactStore persists long-term facts in the memories table.
type FactStore struct {
	db *pgxpool.Pool
}

const factColumns = `id::text, user_id, category, key, value, importance, last_accessed_at, created_at`

// Upsert inserts f or updates the fact with the same user, category and
// key in a single statement.
func (s *FactStore) Upsert(ctx context.Context, f *memory.Fact) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO memories (id, user_id, category, key, value, importance, last_accessed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, category, key) DO UPDATE SET
			value = EXCLUDED.value,
			importance = EXCLUDED.importance,
			last_accessed_at = EXCLUDED.last_accessed_at
		RETURNING id::text, created_at`,
		uuid.New(), f.UserID, f.Category, f.Key, f.Value, f.Importance, f.LastAccessedAt, f.CreatedAt,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert memory %s/%s: %w", f.Category, f.Key, err)
	}
	return nil
}

// Top returns up to n facts by importance, then recency of access.
func (s *FactStore) Top(ctx context.Context, userID int64, n int) ([]memory.Fact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+factColumns+` FROM memories
		WHERE user_id = $1
		ORDER BY importance DESC, last_accessed_at DESC, id
		LIMIT $2`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("top memories: %w", err)
	}
	return collectFacts(rows)
}

// Touch sets last_accessed_at on the given facts.
func (s *FactStore) Touch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE memories SET last_accessed_at = $1 WHERE id::text = ANY($2)`, at, ids)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

// List returns all facts for a user by category and key.
func (s *FactStore) List(ctx context.Context, userID int64) ([]memory.Fact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+factColumns+` FROM memories
		WHERE user_id = $1
		ORDER BY category, key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return collectFacts(rows)
}

func collectFacts(rows pgx.Rows) ([]memory.Fact, error) {
	defer rows.Close()

	facts := []memory.Fact{}
	for rows.Next() {
		var f memory.Fact
		if err := rows.Scan(&f.ID, &f.UserID, &f.Category, &f.Key, &f.Value,
			&f.Importance, &f.LastAccessedAt, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return facts, nil
}
