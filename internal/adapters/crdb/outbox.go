package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/show-reservations/internal/domain"
)

func (t *txRepo) InsertOutbox(ctx context.Context, ev domain.OutboxEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, created_at, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, 'NEW', $7)
	`, ev.ID, ev.AggregateType, ev.AggregateID, ev.EventType, ev.Payload, ev.CreatedAt, ev.DedupeKey)
	return err
}

// RelayOutbox locks up to limit NEW events, oldest first, and marks each one
// PUBLISHED once fn accepts it. It stops at the first rejection; events
// marked before that still commit.
func (r *Repository) RelayOutbox(ctx context.Context, limit int, fn func(domain.OutboxEvent) error) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, dedupe_key
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, err
	}
	var events []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt, &ev.DedupeKey); err != nil {
			rows.Close()
			return 0, err
		}
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	var relayErr error
	for _, ev := range events {
		if relayErr = fn(ev); relayErr != nil {
			break
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1
		`, ev.ID, time.Now().UTC()); err != nil {
			return 0, err
		}
		sent++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, mapErr(err)
	}
	return sent, relayErr
}
