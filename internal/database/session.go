// internal/database/session.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	q := `
		INSERT INTO sessions (id, event_id, status, players, state, origin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, q,
		sess.ID, sess.EventID, sess.Status, sess.Players, []byte(sess.State), sess.Origin,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var (
		sess  models.Session
		state []byte
	)
	q := `
		SELECT id, event_id, status, players, state, origin, created_at, finished_at
		FROM sessions
		WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID, &sess.EventID, &sess.Status, &sess.Players,
		&state, &sess.Origin, &sess.CreatedAt, &sess.FinishedAt,
	)
	if err != nil {
		return nil, notFound(err, "session %s", id)
	}
	sess.State = state
	return &sess, nil
}

// updateSessionTx stores status, state and finish time of a session.
func updateSessionTx(ctx context.Context, tx pgx.Tx, sess *models.Session) error {
	q := `
		UPDATE sessions
		SET status = $1, state = $2, finished_at = $3
		WHERE id = $4
	`
	tag, err := tx.Exec(ctx, q, sess.Status, []byte(sess.State), sess.FinishedAt, sess.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("session %s", sess.ID)
	}
	return nil
}

func (s *Store) AppendRounds(ctx context.Context, sess *models.Session, rounds ...models.Round) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := updateSessionTx(ctx, tx, sess); err != nil {
			return err
		}
		var seq int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM rounds WHERE session_id = $1`, sess.ID).Scan(&seq); err != nil {
			return err
		}
		for _, r := range rounds {
			if r.ID == uuid.Nil {
				r.ID = uuid.New()
			}
			record, err := json.Marshal(r.Record)
			if err != nil {
				return fmt.Errorf("failed to marshal round record: %w", err)
			}
			seq++
			q := `
				INSERT INTO rounds (id, session_id, seq, record)
				VALUES ($1, $2, $3, $4)
			`
			if _, err := tx.Exec(ctx, q, r.ID, sess.ID, seq, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx append rounds: %w", err)
	}
	return nil
}

func scanRound(row pgx.CollectableRow) (models.Round, error) {
	var (
		r      models.Round
		record []byte
	)
	if err := row.Scan(&r.ID, &r.SessionID, &r.Seq, &record, &r.CreatedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal(record, &r.Record); err != nil {
		return r, fmt.Errorf("round %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *Store) LastRound(ctx context.Context, sessionID uuid.UUID) (*models.Round, error) {
	q := `
		SELECT id, session_id, seq, record, created_at
		FROM rounds
		WHERE session_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRound)
	if err != nil {
		return nil, notFound(err, "session %s has no rounds", sessionID)
	}
	return &r, nil
}

func (s *Store) ListRounds(ctx context.Context, sessionID uuid.UUID) ([]models.Round, error) {
	q := `
		SELECT id, session_id, seq, record, created_at
		FROM rounds
		WHERE session_id = $1
		ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRound)
}

func (s *Store) DeleteRound(ctx context.Context, sess *models.Session, roundID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM rounds WHERE id = $1 AND session_id = $2`, roundID, sess.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.NotFound("round %s", roundID)
		}
		return updateSessionTx(ctx, tx, sess)
	})
}

// FinishSession stores the final state, the results and the rating changes in
// one transaction.
func (s *Store) FinishSession(ctx context.Context, sess *models.Session, results []models.SessionResult) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := updateSessionTx(ctx, tx, sess); err != nil {
			return err
		}
		for _, r := range results {
			q := `
				INSERT INTO session_results (session_id, player_id, score, place, rank_bonus, normalized_score, rating_delta)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (session_id, player_id)
				DO UPDATE SET score = $3, place = $4, rank_bonus = $5, normalized_score = $6, rating_delta = $7
			`
			if _, err := tx.Exec(ctx, q, sess.ID, r.PlayerID, r.Score, r.Place, r.RankBonus, r.NormalizedScore, r.RatingDelta); err != nil {
				return err
			}

			if err := applyRatingTx(ctx, tx, sess.ID, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx finish session: %w", err)
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context, sessionID uuid.UUID) ([]models.SessionResult, error) {
	q := `
		SELECT session_id, player_id, score, place, rank_bonus, normalized_score, rating_delta
		FROM session_results
		WHERE session_id = $1
		ORDER BY place
	`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionResult, error) {
		var r models.SessionResult
		err := row.Scan(&r.SessionID, &r.PlayerID, &r.Score, &r.Place, &r.RankBonus, &r.NormalizedScore, &r.RatingDelta)
		return r, err
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errs.NotFound("results of session %s", sessionID)
	}
	return results, nil
}
