package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator provides deterministic local replies when no generator is
// configured or the real one is down.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Reply(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(req.UserText)
	if base == "" {
		return "I'm here and listening whenever you're ready.", nil
	}
	if len(req.History) == 0 {
		return fmt.Sprintf("I hear you: %s. I'm here with you.", base), nil
	}
	return fmt.Sprintf("I hear you: %s. We were just talking about %q.", base, req.History[len(req.History)-1].User), nil
}
