package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/machiavelli/internal/model"
)

const phaseColumns = `id, game_id, seq, year, season, phase_type, state, state_after, turn_log, seed,
	deadline, resolved_at, created_at`

// PhaseRepo handles phase and turn event database operations.
type PhaseRepo struct {
	s *Store
}

// NewPhaseRepo creates a PhaseRepo.
func NewPhaseRepo(s *Store) *PhaseRepo {
	return &PhaseRepo{s: s}
}

type queryer interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreatePhase inserts a new phase after the game's latest one.
func (r *PhaseRepo) CreatePhase(ctx context.Context, gameID string, year int, season, phase string, state json.RawMessage, deadline time.Time) (*model.Phase, error) {
	return createPhase(ctx, r.s, r.s.db, gameID, year, season, phase, state, deadline)
}

func createPhase(ctx context.Context, s *Store, db queryer, gameID string, year int, season, phase string, state json.RawMessage, deadline time.Time) (*model.Phase, error) {
	p := model.Phase{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Year:      year,
		Season:    season,
		Phase:     phase,
		State:     state,
		Deadline:  deadline.UTC(),
		CreatedAt: now(),
	}
	err := db.QueryRowContext(ctx, s.q(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM phases WHERE game_id = $1`), gameID,
	).Scan(&p.Number)
	if err != nil {
		return nil, fmt.Errorf("next phase number: %w", err)
	}
	_, err = db.ExecContext(ctx, s.q(
		`INSERT INTO phases (id, game_id, seq, year, season, phase_type, state, deadline, created_at)
		 VALUES (`+placeholders(1, 9)+`)`),
		p.ID, p.GameID, p.Number, p.Year, p.Season, p.Phase, string(state), p.Deadline, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create phase: %w", err)
	}
	return &p, nil
}

func scanPhase(row scanner) (*model.Phase, error) {
	var p model.Phase
	var state []byte
	var stateAfter, turnLog sql.NullString
	var resolved sql.NullTime
	if err := row.Scan(&p.ID, &p.GameID, &p.Number, &p.Year, &p.Season, &p.Phase, &state, &stateAfter, &turnLog,
		&p.Seed, &p.Deadline, &resolved, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.State = json.RawMessage(state)
	if stateAfter.Valid {
		p.StateAfter = json.RawMessage(stateAfter.String)
	}
	if turnLog.Valid && turnLog.String != "" {
		if err := json.Unmarshal([]byte(turnLog.String), &p.Log); err != nil {
			return nil, fmt.Errorf("unmarshal log of phase %s: %w", p.ID, err)
		}
	}
	if resolved.Valid {
		p.ResolvedAt = &resolved.Time
	}
	return &p, nil
}

// CurrentPhase returns the latest unresolved phase for a game, or nil.
func (r *PhaseRepo) CurrentPhase(ctx context.Context, gameID string) (*model.Phase, error) {
	p, err := scanPhase(r.s.db.QueryRowContext(ctx, r.s.q(
		`SELECT `+phaseColumns+` FROM phases WHERE game_id = $1 AND resolved_at IS NULL
		 ORDER BY seq DESC LIMIT 1`), gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current phase: %w", err)
	}
	return p, nil
}

func (r *PhaseRepo) listPhases(ctx context.Context, what, query string, args ...any) ([]model.Phase, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s phases: %w", what, err)
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		phases = append(phases, *p)
	}
	return phases, rows.Err()
}

// ListPhases returns all phases for a game in chronological order.
func (r *PhaseRepo) ListPhases(ctx context.Context, gameID string) ([]model.Phase, error) {
	return r.listPhases(ctx, "game",
		`SELECT `+phaseColumns+` FROM phases WHERE game_id = $1 ORDER BY seq`, gameID)
}

// ListExpired returns the latest unresolved phase of every active game
// whose deadline is before now.
func (r *PhaseRepo) ListExpired(ctx context.Context, now time.Time) ([]model.Phase, error) {
	return r.listPhases(ctx, "expired",
		`SELECT `+prefixed("p.", phaseColumns)+`
		 FROM phases p JOIN games g ON g.id = p.game_id
		 WHERE p.resolved_at IS NULL AND p.deadline < $1 AND g.status = 'active'
		   AND p.seq = (SELECT MAX(seq) FROM phases WHERE game_id = p.game_id)
		 ORDER BY p.deadline`, now.UTC())
}

// UpdateDeadline moves the deadline of an open phase.
func (r *PhaseRepo) UpdateDeadline(ctx context.Context, phaseID string, deadline time.Time) error {
	_, err := r.s.db.ExecContext(ctx, r.s.q(
		`UPDATE phases SET deadline = $1 WHERE id = $2 AND resolved_at IS NULL`), deadline.UTC(), phaseID,
	)
	if err != nil {
		return fmt.Errorf("update deadline: %w", err)
	}
	return nil
}

// CommitTurn stores a resolved phase in one transaction: the phase result,
// its events, seat and karma changes, and either the next phase or the end
// of the game. It returns the next phase, or nil when the game is over.
func (r *PhaseRepo) CommitTurn(ctx context.Context, c *model.TurnCommit) (*model.Phase, error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	turnLog, err := json.Marshal(c.Log)
	if err != nil {
		return nil, fmt.Errorf("marshal log: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.s.q(
		`UPDATE phases SET state_after = $1, turn_log = $2, seed = $3, resolved_at = $4
		 WHERE id = $5 AND resolved_at IS NULL`),
		string(c.StateAfter), string(turnLog), c.Seed, c.ResolvedAt.UTC(), c.PhaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve phase: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("phase %s already resolved", c.PhaseID)
	}

	for i, e := range c.Events {
		_, err := tx.ExecContext(ctx, r.s.q(
			`INSERT INTO turn_events (id, game_id, phase_id, seq, kind, country, target, area, unit, amount, created_at)
			 VALUES (`+placeholders(1, 11)+`)`),
			uuid.NewString(), c.GameID, c.PhaseID, i, e.Kind, e.Country, e.Target, e.Area, e.Unit, e.Value, c.ResolvedAt.UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
	}

	for country, userID := range c.Seats {
		if err := replacePlayer(ctx, r.s, tx, c.GameID, country, userID); err != nil {
			return nil, err
		}
	}
	for userID, delta := range c.Karma {
		if err := adjustKarma(ctx, r.s, tx, userID, delta); err != nil {
			return nil, err
		}
	}

	var next *model.Phase
	if c.Next == nil {
		if err := setFinished(ctx, r.s, tx, c.GameID, c.Winner); err != nil {
			return nil, err
		}
	} else {
		next, err = createPhase(ctx, r.s, tx, c.GameID, c.Next.Year, c.Next.Season, c.Next.Phase, c.StateAfter, c.Next.Deadline)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}
	return next, nil
}

// EventsByPhase returns the events of a resolved phase in the order they
// happened.
func (r *PhaseRepo) EventsByPhase(ctx context.Context, phaseID string) ([]model.TurnEvent, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(
		`SELECT id, game_id, phase_id, kind, country, target, area, unit, amount, created_at
		 FROM turn_events WHERE phase_id = $1 ORDER BY seq`), phaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("events by phase: %w", err)
	}
	defer rows.Close()

	var events []model.TurnEvent
	for rows.Next() {
		var e model.TurnEvent
		if err := rows.Scan(&e.ID, &e.GameID, &e.PhaseID, &e.Kind, &e.Country, &e.Target, &e.Area, &e.Unit,
			&e.Value, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
