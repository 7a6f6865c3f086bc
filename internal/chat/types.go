package chat

import (
	"errors"
	"time"

	"github.com/dishahealth/coach/internal/conversation"
)

var (
	// ErrGeneration wraps a failed model call. The underlying
	// *provider.Error is reachable with errors.As.
	ErrGeneration = errors.New("generation failed")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Config tunes a turn.
type Config struct {
	HistoryWindow     int           `json:"recent_history_window"`
	FactsPerPrompt    int           `json:"facts_per_prompt"`
	GenerationTimeout time.Duration `json:"generation_timeout"`
	ExtractionTimeout time.Duration `json:"extraction_timeout"`
	Temperature       float64       `json:"temperature"`
}

// DefaultConfig returns the standard turn settings.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:     20,
		FactsPerPrompt:    5,
		GenerationTimeout: 60 * time.Second,
		ExtractionTimeout: 30 * time.Second,
		Temperature:       0.7,
	}
}

// Result is the outcome of one turn.
type Result struct {
	UserTurn      conversation.Turn `json:"user_message"`
	AssistantTurn conversation.Turn `json:"assistant_message"`
	Context       ContextUsed       `json:"context_used"`
}

// ContextUsed summarizes what grounded the reply.
type ContextUsed struct {
	ProtocolsUsed []string `json:"protocols"`
	MemoriesUsed  int      `json:"memories_count"`
}
