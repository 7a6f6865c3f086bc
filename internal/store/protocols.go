package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dishahealth/coach/internal/protocol"
)

var _ protocol.Repository = (*ProtocolStore)(nil)

// ProtocolStore persists protocol reference data.
type ProtocolStore struct {
	db *pgxpool.Pool
}

// ListActive returns active protocols by priority, then insertion order.
func (s *ProtocolStore) ListActive(ctx context.Context) ([]protocol.Protocol, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, category, keywords, trigger_phrases, description,
		       response_template, priority, is_active, created_at
		FROM protocols
		WHERE is_active
		ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	out := []protocol.Protocol{}
	for rows.Next() {
		var p protocol.Protocol
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Keywords, &p.TriggerPhrases,
			&p.Description, &p.Template, &p.Priority, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocols: %w", err)
	}
	return out, nil
}

// Seed inserts protocols whose name is not present yet and returns how many
// were added.
func (s *ProtocolStore) Seed(ctx context.Context, protocols []protocol.Protocol) (int, error) {
	added := 0
	for _, p := range protocols {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO protocols (name, category, keywords, trigger_phrases, description,
			                       response_template, priority, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name) DO NOTHING`,
			p.Name, p.Category, nonNil(p.Keywords), nonNil(p.TriggerPhrases), p.Description,
			p.Template, p.Priority, p.Active,
		)
		if err != nil {
			return added, fmt.Errorf("seed protocol %q: %w", p.Name, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}
