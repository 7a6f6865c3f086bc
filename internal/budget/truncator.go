package budget

import (
	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/tokens"
	"go.uber.org/zap"
)

// Truncator fits conversation history into a token budget.
type Truncator struct {
	config  Config
	counter tokens.Counter
	logger  *zap.Logger
}

// NewTruncator creates a truncator. A nil counter uses the heuristic.
func NewTruncator(cfg Config, counter tokens.Counter, logger *zap.Logger) *Truncator {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultConfig().MaxContextTokens
	}
	if cfg.MaxResponseTokens < 0 {
		cfg.MaxResponseTokens = DefaultConfig().MaxResponseTokens
	}
	if counter == nil {
		counter = tokens.Heuristic{}
	}
	return &Truncator{config: cfg, counter: counter, logger: logger}
}

// Config returns the truncator's settings.
func (t *Truncator) Config() Config { return t.config }

// Available returns the history budget left once the instruction and the
// reply reservation are accounted for. It may be negative.
func (t *Truncator) Available(instruction string) int {
	return t.config.MaxContextTokens - t.counter.Count(instruction) - t.config.MaxResponseTokens
}

// Truncate returns the longest suffix of history that fits the budget, in
// chronological order. If not even the newest turn fits, that turn alone
// is returned with its content cut down, so the latest utterance is never
// dropped entirely.
func (t *Truncator) Truncate(history []conversation.Turn, instruction string) []conversation.Turn {
	if len(history) == 0 {
		return nil
	}
	available := t.Available(instruction)

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := t.turnTokens(history[i])
		if used+n > available {
			break
		}
		used += n
		start = i
	}

	if start < len(history) {
		out := make([]conversation.Turn, len(history)-start)
		copy(out, history[start:])
		if start > 0 {
			t.logger.Debug("history truncated",
				zap.Int("kept", len(out)),
				zap.Int("dropped", start),
				zap.Int("tokens", used),
				zap.Int("available", available))
		}
		return out
	}

	last := history[len(history)-1]
	last.Content = t.cut(last.Content, t.turnTokens(last), available-SafetyMargin)
	last.TokenCount = t.counter.Count(last.Content)
	t.logger.Warn("most recent turn exceeds budget, cutting content",
		zap.Int64("turn", last.ID),
		zap.Int("available", available))
	return []conversation.Turn{last}
}

func (t *Truncator) turnTokens(turn conversation.Turn) int {
	if turn.TokenCount > 0 {
		return turn.TokenCount
	}
	return t.counter.Count(turn.Content)
}

// cut shortens content to about maxTokens using its characters-per-token
// ratio.
func (t *Truncator) cut(content string, contentTokens, maxTokens int) string {
	if contentTokens <= maxTokens {
		return content
	}
	runes := []rune(content)
	if maxTokens <= 0 {
		return Ellipsis
	}
	charsPerToken := float64(len(runes)) / float64(contentTokens)
	maxChars := int(float64(maxTokens) * charsPerToken)
	if maxChars > len(runes) {
		maxChars = len(runes)
	}
	return string(runes[:maxChars]) + Ellipsis
}
