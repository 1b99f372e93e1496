package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chatroom/internal/app/event"
)

// Querier is the subset of *pgxpool.Pool used by History.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// History stores published events in the events table.
type History struct {
	pool Querier
}

// NewHistory returns a History backed by pool, usually a *pgxpool.Pool.
func NewHistory(pool Querier) *History {
	return &History{pool: pool}
}

const insertEvent = `INSERT INTO events (chat_id, kind, created_at, payload) VALUES ($1, $2, $3, $4)`

// Append inserts env. A chat id that is already stored is not an error.
func (h *History) Append(ctx context.Context, env event.Envelope) error {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var chatID *string
	if chat, ok := env.Event.Value.(event.ChatSent); ok {
		chatID = &chat.ChatID
	}

	if _, err := h.pool.Exec(ctx, insertEvent, chatID, string(env.Event.Case), env.Time, payload); err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

const listEvents = `SELECT created_at, payload FROM events
WHERE created_at < $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// List returns at most limit events created before until, newest first.
func (h *History) List(ctx context.Context, until time.Time, limit int) ([]event.Envelope, error) {
	if until.IsZero() {
		until = time.Now().Add(time.Second)
	}

	rows, err := h.pool.Query(ctx, listEvents, until, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (event.Envelope, error) {
		var env event.Envelope
		var payload []byte
		if err := row.Scan(&env.Time, &payload); err != nil {
			return env, err
		}
		if err := json.Unmarshal(payload, &env.Event); err != nil {
			return env, err
		}
		return env, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return list, nil
}
