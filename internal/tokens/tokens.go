package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Counter reports the token length of a piece of text.
type Counter interface {
	Count(text string) int
}

// Estimate is the fallback heuristic: roughly 4 characters per token.
func Estimate(text string) int {
	return len(text) / 4
}

// Heuristic is a Counter that only uses Estimate.
type Heuristic struct{}

func (Heuristic) Count(text string) int { return Estimate(text) }

// BaseEncoding is used for models tiktoken does not know, such as
// Anthropic models and the demo provider.
const BaseEncoding = tiktoken.MODEL_CL100K_BASE

// Tiktoken counts tokens with a BPE encoding. The encoding is loaded on
// first use; if it cannot be loaded, or encoding panics on odd input,
// Count falls back to Estimate.
type Tiktoken struct {
	model  string
	logger *zap.Logger

	forModel func(model string) (*tiktoken.Tiktoken, error)
	byName   func(encoding string) (*tiktoken.Tiktoken, error)

	once    sync.Once
	enc     *tiktoken.Tiktoken
	loadErr error
}

// NewTiktoken creates a counter for the given model's encoding.
func NewTiktoken(model string, logger *zap.Logger) *Tiktoken {
	if model == "" {
		model = "gpt-4"
	}
	return &Tiktoken{
		model:    model,
		logger:   logger,
		forModel: tiktoken.EncodingForModel,
		byName:   tiktoken.GetEncoding,
	}
}

func (t *Tiktoken) load() {
	enc, err := t.forModel(t.model)
	if err != nil {
		t.logger.Debug("no encoding for model, using base encoding",
			zap.String("model", t.model), zap.String("encoding", BaseEncoding), zap.Error(err))
		enc, err = t.byName(BaseEncoding)
	}
	t.enc, t.loadErr = enc, err
	if err != nil {
		t.enc = nil
		t.logger.Warn("tokenizer unavailable, using estimate",
			zap.String("model", t.model), zap.Error(err))
	}
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	t.once.Do(t.load)
	if t.enc == nil {
		return Estimate(text)
	}
	n, err := t.encode(text)
	if err != nil {
		t.logger.Warn("error counting tokens, using estimate", zap.Error(err))
		return Estimate(text)
	}
	return n
}

func (t *Tiktoken) encode(text string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encode: %v", r)
		}
	}()
	return len(t.enc.Encode(text, nil, nil)), nil
}
