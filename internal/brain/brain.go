// Package brain is the boundary to the external dialogue generator. The core
// stays usable when the generator is unreachable: auto mode wraps the HTTP
// client with a deterministic local fallback.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Exchange is one prior user/assistant turn supplied as dialogue context.
type Exchange struct {
	User      string
	Assistant string
}

// Request carries everything the generator needs for one reply.
type Request struct {
	SystemPrompt    string
	ResearchContext []string
	History         []Exchange
	UserText        string
}

// Generator produces the assistant reply for a chat turn.
type Generator interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// Config controls generator construction.
type Config struct {
	Mode   string
	URL    string
	APIKey string
	Model  string
}

func NewGenerator(cfg Config) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockGenerator(), nil
		}
		return NewFallbackGenerator(NewHTTPGenerator(cfg.URL, cfg.APIKey, cfg.Model), NewMockGenerator()), nil
	case "http":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("brain API key is required for http mode")
		}
		return NewHTTPGenerator(cfg.URL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported brain mode %q", cfg.Mode)
	}
}
