package provider

import (
	"context"
	"time"
)

// Provider is a language model capable of producing a chat reply.
// Implementations are selected once at startup.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single generation call.
type Request struct {
	System      string    `json:"system"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is a generated reply.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
	Demo    bool   `json:"demo,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider type identifiers accepted by New.
const (
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
	TypeDemo      = "demo"
)

// Config holds configuration for a provider instance.
type Config struct {
	Type     string        `json:"type"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}
