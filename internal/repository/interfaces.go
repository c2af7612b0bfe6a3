package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/machiavelli/internal/model"
)

// GameRepository defines game and player data operations.
type GameRepository interface {
	Create(ctx context.Context, g *model.Game) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	JoinGame(ctx context.Context, gameID, userID, country string) error
	PlayerCount(ctx context.Context, gameID string) (int, error)
	AssignCountries(ctx context.Context, gameID string, assignments map[string]string) error
	ReplacePlayer(ctx context.Context, gameID, country, userID string) error
	SetFinished(ctx context.Context, gameID, winner string) error
	Karma(ctx context.Context, userID string) (int, error)
	AdjustKarma(ctx context.Context, userID string, delta int) error
}

// PhaseRepository defines phase and turn event data operations.
type PhaseRepository interface {
	CreatePhase(ctx context.Context, gameID string, year int, season, phase string, state json.RawMessage, deadline time.Time) (*model.Phase, error)
	CurrentPhase(ctx context.Context, gameID string) (*model.Phase, error)
	ListPhases(ctx context.Context, gameID string) ([]model.Phase, error)
	UpdateDeadline(ctx context.Context, phaseID string, deadline time.Time) error
	CommitTurn(ctx context.Context, c *model.TurnCommit) (*model.Phase, error)
	EventsByPhase(ctx context.Context, phaseID string) ([]model.TurnEvent, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.Phase, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	MarkDone(ctx context.Context, gameID, country string) error
	UnmarkDone(ctx context.Context, gameID, country string) error
	DoneCountries(ctx context.Context, gameID string) ([]string, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTimer(ctx context.Context, gameID string) error
	AcquireLock(ctx context.Context, gameID, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, gameID, token string) error
	ClearPhaseData(ctx context.Context, gameID string) error
	DeleteGameData(ctx context.Context, gameID string) error
	EnqueueRender(ctx context.Context, job json.RawMessage) error
}
