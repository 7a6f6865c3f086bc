package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dishahealth/coach/internal/conversation"
)

var _ conversation.Repository = (*TurnStore)(nil)

// TurnStore persists conversation turns in the messages table.
type TurnStore struct {
	db *pgxpool.Pool
}

const turnColumns = `id, user_id, role, content, token_count, message_metadata, created_at`

// Append stores a turn and fills in its ID and CreatedAt.
func (s *TurnStore) Append(ctx context.Context, t *conversation.Turn) error {
	var metadataJSON []byte
	if t.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (user_id, role, content, token_count, message_metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.UserID, string(t.Role), t.Content, t.TokenCount, metadataJSON,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns the last n turns oldest first.
func (s *TurnStore) Recent(ctx context.Context, userID int64, n int) ([]conversation.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+turnColumns+` FROM (
			SELECT `+turnColumns+` FROM messages
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return collectTurns(rows)
}

// Page returns turns newest first, starting below req.BeforeID.
func (s *TurnStore) Page(ctx context.Context, userID int64, req conversation.PageRequest) (*conversation.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	total, err := s.Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+turnColumns+` FROM messages
		WHERE user_id = $1 AND ($2::bigint IS NULL OR id < $2)
		ORDER BY id DESC
		LIMIT $3`, userID, req.BeforeID, req.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}
	return conversation.NewPage(turns, req.Limit, total), nil
}

// Count returns the number of stored turns for a user.
func (s *TurnStore) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func collectTurns(rows pgx.Rows) ([]conversation.Turn, error) {
	defer rows.Close()

	turns := []conversation.Turn{}
	for rows.Next() {
		var t conversation.Turn
		var role string
		var metadataJSON []byte
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Content, &t.TokenCount, &metadataJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		t.Role = conversation.Role(role)
		if len(metadataJSON) > 0 {
			var md conversation.Metadata
			if err := json.Unmarshal(metadataJSON, &md); err != nil {
				return nil, fmt.Errorf("decode metadata of message %d: %w", t.ID, err)
			}
			t.Metadata = &md
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return turns, nil
}
