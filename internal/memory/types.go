package memory

import "context"

// Turn stores one user/assistant exchange. Immutable once recorded.
type Turn struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Store persists and retrieves the rolling conversation memory.
//
// Recent returns turns in chronological order; a limit <= 0 returns the
// entire history. Every implementation must honor both halves of that
// contract.
type Store interface {
	AppendTurn(ctx context.Context, turn Turn) error
	Recent(ctx context.Context, limit int) ([]Turn, error)
	Reset(ctx context.Context) error
	Close() error
}
