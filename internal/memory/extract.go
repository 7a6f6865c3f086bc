package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dishahealth/coach/internal/provider"
	"go.uber.org/zap"
)

const extractionPrompt = `Analyze this conversation and extract key information that should be remembered about the user.
Return a JSON list of memories in this format:
[{"category": "health_goal", "key": "primary_goal", "value": "description", "importance": 1-5}]

Categories: %s

Conversation:
%s

Extract only factual, important information. Return empty list if nothing significant.`

// Extractor asks a language model which facts in a conversation excerpt
// are worth remembering.
type Extractor struct {
	provider provider.Provider
	logger   *zap.Logger
}

// NewExtractor creates an extractor backed by p.
func NewExtractor(p provider.Provider, logger *zap.Logger) *Extractor {
	return &Extractor{provider: p, logger: logger}
}

// Extract returns the facts found in excerpt. It never fails: provider
// errors and unparseable replies yield an empty result.
func (e *Extractor) Extract(ctx context.Context, excerpt string) []Candidate {
	resp, err := e.provider.Generate(ctx, &provider.Request{
		Messages: []provider.Message{{
			Role:    "user",
			Content: fmt.Sprintf(extractionPrompt, strings.Join(Categories, ", "), excerpt),
		}},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Error("error extracting memories", zap.Error(err))
		return nil
	}
	if resp.Demo {
		// canned replies carry no facts
		return nil
	}

	candidates, err := ParseCandidates(resp.Content)
	if err != nil {
		e.logger.Warn("failed to parse memories JSON", zap.Error(err))
		return nil
	}
	return candidates
}

// ParseCandidates decodes a JSON list of facts from a model reply. Prose or
// code fences around the list are ignored. Missing categories and keys
// default to "general" and "info", importance is clamped to 1..5, and
// entries without a value are dropped.
func ParseCandidates(reply string) ([]Candidate, error) {
	raw := strings.TrimSpace(reply)
	if !strings.Contains(raw, "[") {
		return nil, fmt.Errorf("no JSON list in reply")
	}

	// The first bracket that opens a decodable list wins; the decoder stops
	// at the end of that value, so trailing prose is never read.
	var (
		items  []wireCandidate
		decErr error
	)
	for i := 0; i < len(raw); i++ {
		if raw[i] != '[' {
			continue
		}
		items = nil
		decErr = json.NewDecoder(strings.NewReader(raw[i:])).Decode(&items)
		if decErr == nil {
			break
		}
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode memories: %w", decErr)
	}

	out := make([]Candidate, 0, len(items))
	for _, w := range items {
		c := Candidate{
			Category:   strings.TrimSpace(w.Category),
			Key:        strings.TrimSpace(w.Key),
			Value:      strings.TrimSpace(w.Value),
			Importance: clampImportance(int(w.Importance)),
		}
		if c.Value == "" {
			continue
		}
		if c.Category == "" {
			c.Category = "general"
		}
		if c.Key == "" {
			c.Key = "info"
		}
		out = append(out, c)
	}
	return out, nil
}

// wireCandidate is a fact as models actually write it.
type wireCandidate struct {
	Category   string      `json:"category"`
	Key        string      `json:"key"`
	Value      string      `json:"value"`
	Importance looseNumber `json:"importance"`
}

// looseNumber accepts 4, 4.5 and "4". Anything else reads as 0.
type looseNumber int

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = looseNumber(math.Round(max(min(f, 100), -100)))
	return nil
}

func clampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}
