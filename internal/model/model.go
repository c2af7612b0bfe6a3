package model

import (
	"encoding/json"
	"time"

	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

// Game statuses.
const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Game represents a Machiavelli game and the options it was created with.
type Game struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	CreatorID   string                    `json:"creator_id"`
	Status      string                    `json:"status"`
	Winner      string                    `json:"winner,omitempty"`
	Scenario    string                    `json:"scenario"`
	Config      machiavelli.Configuration `json:"config"`
	TimeLimit   string                    `json:"time_limit"`
	CitiesToWin int                       `json:"cities_to_win,omitempty"`
	Teams       int                       `json:"teams,omitempty"`
	UsesKarma   bool                      `json:"uses_karma"`
	Private     bool                      `json:"private"`
	CreatedAt   time.Time                 `json:"created_at"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	FinishedAt  *time.Time                `json:"finished_at,omitempty"`
	Players     []GamePlayer              `json:"players,omitempty"`
	DoneCount   int                       `json:"done_count,omitempty"`
}

// GamePlayer is a user's seat in a game. Country stays empty until the
// game starts unless the user picked one when joining.
type GamePlayer struct {
	GameID   string    `json:"game_id"`
	UserID   string    `json:"user_id"`
	Country  string    `json:"country,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// Phase is one step of a game. State holds the serialized
// machiavelli.GameState the phase started from; StateAfter and Log are set
// when the phase is resolved.
type Phase struct {
	ID         string          `json:"id"`
	GameID     string          `json:"game_id"`
	Number     int             `json:"number"`
	Year       int             `json:"year"`
	Season     string          `json:"season"`
	Phase      string          `json:"phase"`
	State      json.RawMessage `json:"state,omitempty"`
	StateAfter json.RawMessage `json:"state_after,omitempty"`
	Log        []string        `json:"log,omitempty"`
	Seed       int64           `json:"seed,omitempty"`
	Deadline   time.Time       `json:"deadline"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TurnEvent is a domain event produced when a phase was resolved.
type TurnEvent struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	PhaseID   string    `json:"phase_id"`
	Kind      string    `json:"kind"`
	Country   string    `json:"country,omitempty"`
	Target    string    `json:"target,omitempty"`
	Area      string    `json:"area,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Value     int       `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NextPhase describes the phase a resolved phase leads to.
type NextPhase struct {
	Year     int
	Season   string
	Phase    string
	Deadline time.Time
}

// TurnCommit is everything a resolved phase writes. It is applied in one
// transaction.
type TurnCommit struct {
	GameID     string
	PhaseID    string
	StateAfter json.RawMessage
	Log        []string
	Seed       int64
	Events     []TurnEvent
	Next       *NextPhase // nil when the game is over
	Winner     string
	Seats      map[string]string // country -> new user after a revolution
	Karma      map[string]int    // user -> karma change
	ResolvedAt time.Time
}
