package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcallaghan/moira/internal/store"
)

// PostgresStore persists conversation memory in PostgreSQL for households
// that outgrow the single JSON file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			stamp TEXT NOT NULL,
			user_text TEXT NOT NULL,
			assistant_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_created ON conversation_turns (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn Turn) error {
	if turn.Timestamp == "" {
		turn.Timestamp = time.Now().Format(store.TimeLayout)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, stamp, user_text, assistant_text) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(),
		turn.Timestamp,
		turn.User,
		turn.Assistant,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Turn, error) {
	var (
		rows    pgx.Rows
		err     error
		reverse bool
	)
	if limit > 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT stamp, user_text, assistant_text
			 FROM conversation_turns ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
		reverse = true
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT stamp, user_text, assistant_text
			 FROM conversation_turns ORDER BY created_at ASC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Timestamp, &t.User, &t.Assistant); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// The limited query walks newest-first; flip into chronological order.
	if reverse {
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
	}

	return turns, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE conversation_turns`); err != nil {
		return fmt.Errorf("reset turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
