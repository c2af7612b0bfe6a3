package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/model"
	"github.com/freeeve/machiavelli/internal/repository"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameNotWaiting = errors.New("game is not in waiting status")
	ErrGameFull       = errors.New("every country is taken")
	ErrNotEnough      = errors.New("need at least 2 players to start")
	ErrNotCreator     = errors.New("only the creator can start the game")
	ErrGameNotActive  = errors.New("game is not active")
	ErrAlreadyJoined  = errors.New("already joined this game")
	ErrNotInGame      = errors.New("you are not in this game")
	ErrCountryTaken   = errors.New("country already taken by another player")
	ErrInvalidCountry = errors.New("invalid country")
	ErrInvalidOptions = errors.New("invalid game options")
)

const defaultTimeLimit = "24h"

// CreateGameInput is the request payload for creating a game.
type CreateGameInput struct {
	Name        string                    `json:"name"`
	Config      machiavelli.Configuration `json:"config"`
	TimeLimit   string                    `json:"time_limit"`
	CitiesToWin int                       `json:"cities_to_win"`
	Teams       int                       `json:"teams"`
	UsesKarma   bool                      `json:"uses_karma"`
	Private     bool                      `json:"private"`
	Country     string                    `json:"country,omitempty"`
}

// GameService handles game lifecycle operations.
type GameService struct {
	gameRepo  repository.GameRepository
	phaseRepo repository.PhaseRepository
	phases    *PhaseService
	sc        *machiavelli.Scenario
}

// NewGameService creates a GameService.
func NewGameService(gameRepo repository.GameRepository, phaseRepo repository.PhaseRepository, phases *PhaseService) *GameService {
	return &GameService{gameRepo: gameRepo, phaseRepo: phaseRepo, phases: phases, sc: phases.Scenario()}
}

func (s *GameService) validCountry(key string) bool {
	return s.sc.Country(key) != nil
}

// CreateGame creates a new game in "waiting" status. The creator joins it.
func (s *GameService) CreateGame(ctx context.Context, creatorID string, in CreateGameInput) (*model.Game, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidOptions)
	}
	if in.TimeLimit == "" {
		in.TimeLimit = defaultTimeLimit
	}
	limit, err := time.ParseDuration(in.TimeLimit)
	if err != nil || limit <= 0 {
		return nil, fmt.Errorf("%w: time limit %q", ErrInvalidOptions, in.TimeLimit)
	}
	if in.CitiesToWin < 0 || in.Teams < 0 || in.Teams > len(s.sc.Countries) {
		return nil, fmt.Errorf("%w: cities to win or teams out of range", ErrInvalidOptions)
	}
	if in.Country != "" && !s.validCountry(in.Country) {
		return nil, ErrInvalidCountry
	}

	game, err := s.gameRepo.Create(ctx, &model.Game{
		Name:        in.Name,
		CreatorID:   creatorID,
		Scenario:    s.sc.Name,
		Config:      in.Config.Normalize(),
		TimeLimit:   in.TimeLimit,
		CitiesToWin: in.CitiesToWin,
		Teams:       in.Teams,
		UsesKarma:   in.UsesKarma,
		Private:     in.Private,
	})
	if err != nil {
		return nil, err
	}
	if err := s.gameRepo.JoinGame(ctx, game.ID, creatorID, in.Country); err != nil {
		return nil, err
	}
	log.Info().Str("gameId", game.ID).Str("userId", creatorID).Str("scenario", game.Scenario).Msg("Game created")
	return s.gameRepo.FindByID(ctx, game.ID)
}

// JoinGame adds a player to a waiting game. An empty country is assigned
// at random when the game starts.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID, country string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != model.StatusWaiting {
		return ErrGameNotWaiting
	}
	if country != "" && !s.validCountry(country) {
		return ErrInvalidCountry
	}

	for _, p := range game.Players {
		if p.UserID == userID {
			return ErrAlreadyJoined
		}
		if country != "" && p.Country == country {
			return ErrCountryTaken
		}
	}

	count, err := s.gameRepo.PlayerCount(ctx, gameID)
	if err != nil {
		return err
	}
	if count >= len(s.sc.Countries) {
		return ErrGameFull
	}

	return s.gameRepo.JoinGame(ctx, gameID, userID, country)
}

// StartGame assigns countries, sets up the board and opens the first phase.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != model.StatusWaiting {
		return nil, ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if len(game.Players) < 2 {
		return nil, ErrNotEnough
	}

	assignments := assignCountries(game.Players, s.sc.CountryKeys())
	players := make(map[string]string, len(assignments))
	for user, country := range assignments {
		players[country] = user
	}

	limit, err := time.ParseDuration(game.TimeLimit)
	if err != nil {
		return nil, fmt.Errorf("parse time limit: %w", err)
	}
	gs, err := machiavelli.NewGame(s.sc, game.Config, players, machiavelli.GameOptions{
		CitiesToWin: game.CitiesToWin,
		TimeLimit:   limit,
		Teams:       game.Teams,
		UsesKarma:   game.UsesKarma,
		Private:     game.Private,
		Seed:        s.phases.seed(),
	}, s.phases.now())
	if err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}
	if gs.UsesKarma {
		for _, p := range gs.UserPlayers() {
			karma, err := s.gameRepo.Karma(ctx, p.UserID)
			if err != nil {
				return nil, err
			}
			p.Karma = karma
		}
	}

	if err := s.gameRepo.AssignCountries(ctx, gameID, assignments); err != nil {
		return nil, err
	}

	stateJSON, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("marshal initial state: %w", err)
	}
	_, err = s.phaseRepo.CreatePhase(ctx, gameID, gs.Year, gs.Season.String(), gs.Phase.String(), stateJSON,
		machiavelli.NextPhaseChange(gs))
	if err != nil {
		return nil, err
	}
	if err := s.phases.InitializeGame(ctx, gameID, gs); err != nil {
		return nil, err
	}

	log.Info().Str("gameId", gameID).Int("players", len(players)).Msg("Game started")
	return s.gameRepo.FindByID(ctx, gameID)
}

// assignCountries keeps the countries players picked and deals the
// remaining ones at random.
func assignCountries(players []model.GamePlayer, countries []string) map[string]string {
	assignments := make(map[string]string, len(players))
	used := make(map[string]bool)
	for _, p := range players {
		if p.Country != "" {
			assignments[p.UserID] = p.Country
			used[p.Country] = true
		}
	}
	var available []string
	for _, c := range countries {
		if !used[c] {
			available = append(available, c)
		}
	}
	rand.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	for _, p := range players {
		if p.Country == "" {
			assignments[p.UserID] = available[0]
			available = available[1:]
		}
	}
	return assignments
}

// GetGame returns a game by ID.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// ListGames returns the open games, or the user's games when mine is set.
func (s *GameService) ListGames(ctx context.Context, userID string, mine bool) ([]model.Game, error) {
	if mine {
		return s.gameRepo.ListByUser(ctx, userID)
	}
	return s.gameRepo.ListOpen(ctx)
}

// Surrender gives up the user's seat in a running game.
func (s *GameService) Surrender(ctx context.Context, gameID, userID string) error {
	_, country, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.Surrender(gs, country, s.phases.now())
	})
	if err != nil {
		return err
	}
	log.Info().Str("gameId", gameID).Str("country", country).Msg("Player surrendered")
	s.phases.broadcaster.BroadcastGameEvent(gameID, "player_surrendered", map[string]any{"country": country})
	return nil
}

// Overthrow makes the user the opposition of an open revolution. A
// surrendered seat changes hands at once.
func (s *GameService) Overthrow(ctx context.Context, gameID, userID, country string) error {
	var events []machiavelli.Event
	_, err := s.phases.Mutate(ctx, gameID, func(gs *machiavelli.GameState) error {
		var err error
		events, err = machiavelli.Overthrow(gs, userID, country)
		return err
	})
	if err != nil {
		return err
	}
	for c, user := range seatChanges(events) {
		if err := s.gameRepo.ReplacePlayer(ctx, gameID, c, user); err != nil {
			return err
		}
		log.Info().Str("gameId", gameID).Str("country", c).Str("userId", user).Msg("Government overthrown")
	}
	for user, delta := range karmaChanges(events) {
		if err := s.gameRepo.AdjustKarma(ctx, user, delta); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Str("userId", user).Msg("Failed to adjust karma")
		}
	}
	s.phases.broadcastEvents(gameID, events)
	return nil
}

// CanWatch reports whether the user may follow a game's live events.
// Private games are visible only to their players.
func (s *GameService) CanWatch(ctx context.Context, gameID, userID string) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !game.Private {
		return nil
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return nil
		}
	}
	return ErrNotInGame
}
