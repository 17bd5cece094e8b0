// internal/database/round_log.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertRoundEvents appends a batch of round events to round_log in one transaction.
func (s *Store) InsertRoundEvents(ctx context.Context, events []models.RoundEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload of %s: %w", ev.Action, err)
			}
			batch.Queue(`
				INSERT INTO round_log (session_id, action, payload, logged_at)
				VALUES ($1, $2, $3, $4)
			`, ev.SessionID, ev.Action, payload, ev.Timestamp)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("tx insert round events: %w", err)
	}
	return nil
}

// RoundLog returns the logged events of a session in arrival order.
func (s *Store) RoundLog(ctx context.Context, sessionID uuid.UUID) ([]models.RoundEvent, error) {
	q := `
		SELECT session_id, action, payload, logged_at
		FROM round_log
		WHERE session_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RoundEvent, error) {
		var (
			ev      models.RoundEvent
			payload []byte
		)
		if err := row.Scan(&ev.SessionID, &ev.Action, &payload, &ev.Timestamp); err != nil {
			return ev, err
		}
		return ev, json.Unmarshal(payload, &ev.Payload)
	})
}
