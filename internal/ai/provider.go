package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Options carries per-call sampling settings. Zero values mean provider defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
