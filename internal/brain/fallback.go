package brain

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// FallbackGenerator tries a primary generator and degrades to the fallback on
// error, so an unavailable dialogue service never breaks a chat turn.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
}

func NewFallbackGenerator(primary, fallback Generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, fallback: fallback}
}

func (g *FallbackGenerator) Reply(ctx context.Context, req Request) (string, error) {
	text, err := g.primary.Reply(ctx, req)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if g.fallback == nil {
		return "", err
	}
	log.Printf("brain: primary generator failed, using fallback: %v", err)
	text, fallbackErr := g.fallback.Reply(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary generator error: %w; fallback error: %v", err, fallbackErr)
	}
	return text, nil
}
