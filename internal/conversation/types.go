package conversation

import (
	"context"
	"errors"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one stored message in a user's conversation.
type Turn struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	TokenCount int       `json:"token_count"`
	Metadata   *Metadata `json:"message_metadata,omitempty"`
}

// Metadata describes how an assistant turn was produced.
type Metadata struct {
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	MessagesUsed  int      `json:"messages_used"`
	TotalMessages int      `json:"total_messages"`
	TokensUsed    int      `json:"tokens_used"`
	ProtocolsUsed []string `json:"protocols_used"`
	MemoriesUsed  int      `json:"memories_used"`
	Onboarding    bool     `json:"is_onboarding"`
	DemoMode      bool     `json:"demo_mode,omitempty"`
	LatencyMs     int64    `json:"latency_ms,omitempty"`
}

// Pagination bounds.
const (
	MinPageLimit     = 1
	MaxPageLimit     = 100
	DefaultPageLimit = 50
)

// ErrInvalidLimit is returned when a page limit is outside [1,100].
var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

// PageRequest selects turns older than BeforeID, newest first.
type PageRequest struct {
	Limit    int
	BeforeID *int64
}

// Validate checks the page limit.
func (r PageRequest) Validate() error {
	if r.Limit < MinPageLimit || r.Limit > MaxPageLimit {
		return ErrInvalidLimit
	}
	return nil
}

// Page is one slice of history ordered by id descending.
type Page struct {
	Items      []Turn `json:"messages"`
	Total      int    `json:"total"`
	HasMore    bool   `json:"has_more"`
	NextCursor *int64 `json:"next_cursor"`
}

// NewPage builds a Page from up to limit+1 rows fetched newest first.
// The extra row only signals that more history exists.
func NewPage(rows []Turn, limit, total int) *Page {
	p := &Page{Items: rows, Total: total}
	if len(rows) > limit {
		p.HasMore = true
		p.Items = rows[:limit]
	}
	if p.HasMore && len(p.Items) > 0 {
		oldest := p.Items[len(p.Items)-1].ID
		p.NextCursor = &oldest
	}
	if p.Items == nil {
		p.Items = []Turn{}
	}
	return p
}

// Repository stores conversation turns.
type Repository interface {
	// Append persists a turn and fills in its ID and CreatedAt.
	Append(ctx context.Context, t *Turn) error
	// Recent returns the last n turns for a user in chronological order.
	Recent(ctx context.Context, userID int64, n int) ([]Turn, error)
	// Page returns turns by id descending.
	Page(ctx context.Context, userID int64, req PageRequest) (*Page, error)
	// Count returns the number of stored turns for a user.
	Count(ctx context.Context, userID int64) (int, error)
}
