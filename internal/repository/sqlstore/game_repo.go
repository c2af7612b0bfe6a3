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
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

const gameColumns = `id, name, creator_id, status, winner, scenario, config, time_limit,
	cities_to_win, teams, uses_karma, is_private, created_at, started_at, finished_at`

func now() time.Time {
	return time.Now().UTC()
}

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	s *Store
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(s *Store) *GameRepo {
	return &GameRepo{s: s}
}

// Create inserts a new game in waiting status.
func (r *GameRepo) Create(ctx context.Context, g *model.Game) (*model.Game, error) {
	cfg, err := json.Marshal(g.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	created := *g
	created.ID = uuid.NewString()
	created.Status = model.StatusWaiting
	created.CreatedAt = now()
	created.Players = nil
	_, err = r.s.db.ExecContext(ctx, r.s.q(
		`INSERT INTO games (id, name, creator_id, status, scenario, config, time_limit,
		                    cities_to_win, teams, uses_karma, is_private, created_at)
		 VALUES (`+placeholders(1, 12)+`)`),
		created.ID, created.Name, created.CreatorID, created.Status, created.Scenario, string(cfg), created.TimeLimit,
		created.CitiesToWin, created.Teams, created.UsesKarma, created.Private, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return &created, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*model.Game, error) {
	var g model.Game
	var winner sql.NullString
	var cfg []byte
	var started, finished sql.NullTime
	if err := row.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.Scenario, &cfg, &g.TimeLimit,
		&g.CitiesToWin, &g.Teams, &g.UsesKarma, &g.Private, &g.CreatedAt, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &g.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config of game %s: %w", g.ID, err)
	}
	g.Winner = winner.String
	if started.Valid {
		g.StartedAt = &started.Time
	}
	if finished.Valid {
		g.FinishedAt = &finished.Time
	}
	return &g, nil
}

// FindByID returns a game by ID with its players, or nil when it does not
// exist.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(r.s.db.QueryRowContext(ctx, r.s.q(
		`SELECT `+gameColumns+` FROM games WHERE id = $1`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return g, nil
}

func (r *GameRepo) listGames(ctx context.Context, what, query string, args ...any) ([]model.Game, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s games: %w", what, err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range games {
		players, err := r.ListPlayers(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Players = players
	}
	return games, nil
}

// ListOpen returns games in waiting status.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	return r.listGames(ctx, "open",
		`SELECT `+gameColumns+` FROM games WHERE status = 'waiting' AND is_private = FALSE
		 ORDER BY created_at DESC LIMIT 50`)
}

// ListByUser returns the games a user plays in or created.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return r.listGames(ctx, "user",
		`SELECT `+gameColumns+` FROM games
		 WHERE creator_id = $1 OR id IN (SELECT game_id FROM game_players WHERE user_id = $1)
		 ORDER BY created_at DESC LIMIT 50`, userID)
}

// ListActive returns all running games, oldest first.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	return r.listGames(ctx, "active",
		`SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY created_at`)
}

// ListPlayers returns all players in a game.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(
		`SELECT game_id, user_id, country, joined_at FROM game_players WHERE game_id = $1 ORDER BY joined_at, user_id`),
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Country, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// JoinGame adds a player to a game. country may be empty for a random
// country at start.
func (r *GameRepo) JoinGame(ctx context.Context, gameID, userID, country string) error {
	_, err := r.s.db.ExecContext(ctx, r.s.q(
		`INSERT INTO game_players (game_id, user_id, country, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`),
		gameID, userID, country, now(),
	)
	if err != nil {
		return fmt.Errorf("join game: %w", err)
	}
	return nil
}

// PlayerCount returns the number of players in a game.
func (r *GameRepo) PlayerCount(ctx context.Context, gameID string) (int, error) {
	var count int
	err := r.s.db.QueryRowContext(ctx, r.s.q(
		`SELECT COUNT(*) FROM game_players WHERE game_id = $1`), gameID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("player count: %w", err)
	}
	return count, nil
}

// AssignCountries sets every player's country and marks the game active.
// assignments maps user IDs to country keys.
func (r *GameRepo) AssignCountries(ctx context.Context, gameID string, assignments map[string]string) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for userID, country := range assignments {
		_, err := tx.ExecContext(ctx, r.s.q(
			`UPDATE game_players SET country = $1 WHERE game_id = $2 AND user_id = $3`),
			country, gameID, userID,
		)
		if err != nil {
			return fmt.Errorf("assign country: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, r.s.q(
		`UPDATE games SET status = 'active', started_at = $1 WHERE id = $2`), now(), gameID,
	)
	if err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	return tx.Commit()
}

// ReplacePlayer gives a country's seat to another user.
func (r *GameRepo) ReplacePlayer(ctx context.Context, gameID, country, userID string) error {
	return replacePlayer(ctx, r.s, r.s.db, gameID, country, userID)
}

func replacePlayer(ctx context.Context, s *Store, db execer, gameID, country, userID string) error {
	_, err := db.ExecContext(ctx, s.q(
		`UPDATE game_players SET user_id = $1 WHERE game_id = $2 AND country = $3`),
		userID, gameID, country,
	)
	if err != nil {
		return fmt.Errorf("replace player of %s: %w", country, err)
	}
	return nil
}

// SetFinished marks a game as finished.
func (r *GameRepo) SetFinished(ctx context.Context, gameID, winner string) error {
	return setFinished(ctx, r.s, r.s.db, gameID, winner)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setFinished(ctx context.Context, s *Store, db execer, gameID, winner string) error {
	_, err := db.ExecContext(ctx, s.q(
		`UPDATE games SET status = 'finished', winner = $1, finished_at = $2 WHERE id = $3`),
		winner, now(), gameID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Karma returns a user's karma, or the starting karma for a user who has
// none recorded.
func (r *GameRepo) Karma(ctx context.Context, userID string) (int, error) {
	var karma int
	err := r.s.db.QueryRowContext(ctx, r.s.q(
		`SELECT karma FROM user_karma WHERE user_id = $1`), userID,
	).Scan(&karma)
	if errors.Is(err, sql.ErrNoRows) {
		return machiavelli.DefaultKarma, nil
	}
	if err != nil {
		return 0, fmt.Errorf("karma: %w", err)
	}
	return karma, nil
}

// AdjustKarma adds delta to a user's karma.
func (r *GameRepo) AdjustKarma(ctx context.Context, userID string, delta int) error {
	return adjustKarma(ctx, r.s, r.s.db, userID, delta)
}

func adjustKarma(ctx context.Context, s *Store, db execer, userID string, delta int) error {
	_, err := db.ExecContext(ctx, s.q(
		`INSERT INTO user_karma (user_id, karma) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET karma = user_karma.karma + $3`),
		userID, machiavelli.DefaultKarma+delta, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust karma: %w", err)
	}
	return nil
}
