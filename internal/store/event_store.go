package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/event-recorder/internal/domain"
	"github.com/jackc/pgx/v5"
)

// appendLockID serialises appends across every recorder sharing the database.
const appendLockID int64 = 7_310_482_219

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Append inserts the event at the next position inside a transaction holding
// an advisory lock, then returns the table contents seen by that transaction.
func (s *PostgresStore) Append(ctx context.Context, event domain.Event) ([]domain.Event, error) {
	timestamp, err := json.Marshal(event.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("encoding timestamp: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockID); err != nil {
		return nil, fmt.Errorf("acquiring append lock: %w", err)
	}

	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM events").Scan(&event.ID); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, name, payload)
		VALUES ($1, $2, $3)
	`, event.ID, event.Name, timestamp)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	events, err := listEvents(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return events, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Event, error) {
	return listEvents(ctx, s.pool)
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func listEvents(ctx context.Context, q querier) ([]domain.Event, error) {
	rows, err := q.Query(ctx, `SELECT id, name, payload FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			e   domain.Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Name, &raw); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&e.Timestamp); err != nil {
			return nil, fmt.Errorf("decoding timestamp of event %d: %w", e.ID, err)
		}

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}
