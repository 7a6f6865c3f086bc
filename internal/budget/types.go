package budget

// SafetyMargin is reserved from the budget when the most recent turn has
// to be cut down to fit on its own.
const SafetyMargin = 100

// Ellipsis marks content that was cut.
const Ellipsis = "..."

// Config holds token budget settings.
type Config struct {
	MaxContextTokens  int // total budget across instruction, history and reply
	MaxResponseTokens int // reserved for the model's reply
}

// DefaultConfig returns the 8k window with 1k reserved for the reply.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens:  8000,
		MaxResponseTokens: 1000,
	}
}
