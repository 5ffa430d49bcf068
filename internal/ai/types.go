package ai

import (
	"context"
	"errors"
)

// Request is a generic text-analysis request against a generative provider.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited = errors.New("rate_limited")
	// ErrProviderUnavailable covers network, auth and quota failures.
	ErrProviderUnavailable = errors.New("analysis provider unavailable")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
