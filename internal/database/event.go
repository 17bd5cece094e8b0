// internal/database/event.go
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

func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate event id: %w", err)
		}
		e.ID = id
	}
	overrides, err := json.Marshal(e.RuleOverrides)
	if err != nil {
		return fmt.Errorf("failed to marshal rule overrides: %w", err)
	}
	if e.RuleOverrides == nil {
		overrides = []byte("{}")
	}

	q := `
		INSERT INTO events (id, title, ruleset, rule_overrides, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, q, e.ID, e.Title, e.Ruleset, overrides, e.PasswordHash).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var (
		e         models.Event
		overrides []byte
	)
	q := `
		SELECT id, title, ruleset, rule_overrides, password_hash, created_at
		FROM events
		WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Ruleset, &overrides, &e.PasswordHash, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err, "event %s", id)
	}
	if err := json.Unmarshal(overrides, &e.RuleOverrides); err != nil {
		return nil, fmt.Errorf("event %s: bad rule overrides: %w", id, err)
	}
	if len(e.RuleOverrides) == 0 {
		e.RuleOverrides = nil
	}
	return &e, nil
}

func (s *Store) AddPlayer(ctx context.Context, p *models.Player) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := `
		INSERT INTO players (id, event_id, alias, display_name, rating)
		VALUES ($1, $2, $3, $4, $5)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, p.EventID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.NotFound("event %s", p.EventID)
		}
		_, err := tx.Exec(ctx, q, p.ID, p.EventID, p.Alias, p.DisplayName, p.Rating)
		return err
	})
	if isUniqueViolation(err) {
		return errs.Invalid("alias %q is already registered", p.Alias)
	}
	return err
}

func (s *Store) ListPlayers(ctx context.Context, eventID uuid.UUID) ([]models.Player, error) {
	q := `
		SELECT id, event_id, alias, display_name, rating
		FROM players
		WHERE event_id = $1
		ORDER BY alias
	`
	rows, err := s.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Player, error) {
		var p models.Player
		err := row.Scan(&p.ID, &p.EventID, &p.Alias, &p.DisplayName, &p.Rating)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}
