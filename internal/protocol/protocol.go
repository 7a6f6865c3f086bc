package protocol

import (
	"context"
	"time"
)

// Protocol is a priority-ranked canned-response rule.
type Protocol struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Keywords       []string  `json:"keywords"`
	TriggerPhrases []string  `json:"trigger_phrases,omitempty"`
	Description    string    `json:"description,omitempty"`
	Template       string    `json:"response_template"`
	Priority       int       `json:"priority"` // higher fires first
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary is the part of a matched protocol injected into a prompt.
type Summary struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Template string `json:"response_template"`
	Priority int    `json:"priority"`
}

// Summarize returns the prompt-facing view of p.
func (p Protocol) Summarize() Summary {
	return Summary{
		Name:     p.Name,
		Category: p.Category,
		Template: p.Template,
		Priority: p.Priority,
	}
}

// Names returns the names of matched protocols in order.
func Names(summaries []Summary) []string {
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}
	return names
}

// Repository stores protocol reference data.
type Repository interface {
	// ListActive returns active protocols by priority descending, then seed order.
	ListActive(ctx context.Context) ([]Protocol, error)
	// Seed inserts protocols whose name is not already present.
	Seed(ctx context.Context, protocols []Protocol) (int, error)
}
