package memory

import (
	"context"
	"strings"

	"github.com/mcallaghan/moira/internal/store"
)

// NewStore creates a postgres-backed store when configured, otherwise the
// file-resident default.
func NewStore(ctx context.Context, databaseURL string, records *store.Store) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewFileStore(records), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
