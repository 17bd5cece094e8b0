// internal/database/rating.go
package database

import (
	"context"
	"time"

	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/rating"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RatingChange is one row of a player's rating history.
type RatingChange struct {
	SessionID uuid.UUID `json:"session_id"`
	OldRating float64   `json:"old_rating"`
	NewRating float64   `json:"new_rating"`
	CreatedAt time.Time `json:"created_at"`
}

// applyRatingTx adds a session result's delta to the player's rating and logs
// the change in rating_history.
func applyRatingTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, r models.SessionResult) error {
	var old float64
	if err := tx.QueryRow(ctx, `SELECT rating FROM players WHERE id = $1 FOR UPDATE`, r.PlayerID).Scan(&old); err != nil {
		return notFound(err, "player %s", r.PlayerID)
	}
	updated := rating.ApplyDelta(old, r.RatingDelta)
	if _, err := tx.Exec(ctx, `UPDATE players SET rating = $1 WHERE id = $2`, updated, r.PlayerID); err != nil {
		return err
	}
	q := `
		INSERT INTO rating_history (player_id, session_id, old_rating, new_rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, session_id)
		DO UPDATE SET old_rating = $3, new_rating = $4
	`
	_, err := tx.Exec(ctx, q, r.PlayerID, sessionID, old, updated)
	return err
}

// RatingHistory lists a player's rating changes, oldest first.
func (s *Store) RatingHistory(ctx context.Context, playerID uuid.UUID) ([]RatingChange, error) {
	q := `
		SELECT session_id, old_rating, new_rating, created_at
		FROM rating_history
		WHERE player_id = $1
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, q, playerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[RatingChange])
}
