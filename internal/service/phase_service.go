package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/logger"
	"github.com/freeeve/machiavelli/internal/model"
	"github.com/freeeve/machiavelli/internal/repository"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

// ErrAlreadyProcessing is returned when another worker holds the game.
var ErrAlreadyProcessing = errors.New("game is being processed")

const (
	lockTTL      = 30 * time.Second
	lockAttempts = 10
	lockBackoff  = 50 * time.Millisecond
	checkTimeout = time.Minute
)

// PhaseService owns the live game state: it serializes changes to a game,
// closes phases when every player is done or the deadline passed, and
// commits processed turns.
type PhaseService struct {
	gameRepo    repository.GameRepository
	phaseRepo   repository.PhaseRepository
	cache       repository.GameCache
	sc          *machiavelli.Scenario
	broadcaster Broadcaster
	renderer    MapRenderer

	// gameLocks keeps a single worker per game inside this process. The
	// Redis lock extends that to other processes.
	gameLocks sync.Map

	now  func() time.Time
	seed func() int64
	// spawn runs background work such as the phase check triggered when the
	// last player finishes.
	spawn func(func())
}

// NewPhaseService creates a PhaseService.
func NewPhaseService(
	gameRepo repository.GameRepository,
	phaseRepo repository.PhaseRepository,
	cache repository.GameCache,
	sc *machiavelli.Scenario,
	broadcaster Broadcaster,
) *PhaseService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &PhaseService{
		gameRepo:    gameRepo,
		phaseRepo:   phaseRepo,
		cache:       cache,
		sc:          sc,
		broadcaster: broadcaster,
		renderer:    NoopRenderer{},
		now:         time.Now,
		seed:        randomSeed,
		spawn:       func(f func()) { go f() },
	}
}

// SetRenderer configures where map render requests go after a turn.
func (s *PhaseService) SetRenderer(r MapRenderer) {
	s.renderer = r
}

// Scenario returns the scenario games are played on.
func (s *PhaseService) Scenario() *machiavelli.Scenario {
	return s.sc
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// gameLock returns the mutex for a given game ID.
func (s *PhaseService) gameLock(gameID string) *sync.Mutex {
	v, _ := s.gameLocks.LoadOrStore(gameID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// tryLock takes both the process and the Redis lock of a game without
// waiting.
func (s *PhaseService) tryLock(ctx context.Context, gameID string) (func(), error) {
	mu := s.gameLock(gameID)
	if !mu.TryLock() {
		return nil, ErrAlreadyProcessing
	}
	token := uuid.NewString()
	ok, err := s.cache.AcquireLock(ctx, gameID, token, lockTTL)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if !ok {
		mu.Unlock()
		return nil, ErrAlreadyProcessing
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cache.ReleaseLock(ctx, gameID, token); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to release game lock")
		}
		mu.Unlock()
	}, nil
}

// lock is tryLock with a short retry, for player actions that should wait
// out a concurrent action rather than fail.
func (s *PhaseService) lock(ctx context.Context, gameID string) (func(), error) {
	for attempt := 1; ; attempt++ {
		unlock, err := s.tryLock(ctx, gameID)
		if !errors.Is(err, ErrAlreadyProcessing) || attempt == lockAttempts {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
}

// activeGame loads a game and checks that it is running.
func (s *PhaseService) activeGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != model.StatusActive {
		return nil, ErrGameNotActive
	}
	return game, nil
}

// loadState reads the live state from the cache, falling back to the
// snapshot of the current phase, and applies done flags recorded in the
// cache.
func (s *PhaseService) loadState(ctx context.Context, gameID string) (*machiavelli.GameState, *model.Phase, error) {
	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("get current phase: %w", err)
	}
	if phase == nil {
		return nil, nil, ErrNoActivePhase
	}
	data, err := s.cache.GetGameState(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("get cached state: %w", err)
	}
	if data == nil {
		log.Warn().Str("gameId", gameID).Str("phaseId", phase.ID).Msg("No cached state, using phase snapshot")
		data = phase.State
	}
	var gs machiavelli.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, nil, fmt.Errorf("unmarshal state: %w", err)
	}
	done, err := s.cache.DoneCountries(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("done countries: %w", err)
	}
	mergeDone(&gs, done)
	return &gs, phase, nil
}

func mergeDone(gs *machiavelli.GameState, done []string) {
	for _, country := range done {
		if p := gs.Player(country); p != nil && !p.Done {
			machiavelli.EndPhase(gs, country, false)
		}
	}
}

func (s *PhaseService) saveState(ctx context.Context, gameID string, gs *machiavelli.GameState) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.cache.SetGameState(ctx, gameID, data); err != nil {
		return fmt.Errorf("set game state: %w", err)
	}
	return nil
}

// State returns the live state of a running game.
func (s *PhaseService) State(ctx context.Context, gameID string) (*machiavelli.GameState, error) {
	if _, err := s.activeGame(ctx, gameID); err != nil {
		return nil, err
	}
	gs, _, err := s.loadState(ctx, gameID)
	return gs, err
}

// Mutate applies fn to the live state of a running game under the game
// lock. The state is saved only when fn succeeds.
func (s *PhaseService) Mutate(ctx context.Context, gameID string, fn func(gs *machiavelli.GameState) error) (*machiavelli.GameState, error) {
	if _, err := s.activeGame(ctx, gameID); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	gs, _, err := s.loadState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if gs.Finished {
		return nil, ErrGameNotActive
	}
	if err := fn(gs); err != nil {
		return nil, err
	}
	if err := s.saveState(ctx, gameID, gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// MutateAs is Mutate for an action of one player. fn receives the country
// the user plays. When the action finished the player's part of the phase,
// the done set and the timer are updated and, once everybody is done, the
// phase check is started.
func (s *PhaseService) MutateAs(ctx context.Context, gameID, userID string, fn func(gs *machiavelli.GameState, country string) error) (*machiavelli.GameState, string, error) {
	var country string
	var wasDone bool
	gs, err := s.Mutate(ctx, gameID, func(gs *machiavelli.GameState) error {
		var err error
		country, err = countryOf(gs, userID)
		if err != nil {
			return err
		}
		wasDone = gs.Player(country).Done
		return fn(gs, country)
	})
	if err != nil {
		return nil, "", err
	}
	if done := gs.Player(country).Done; done != wasDone {
		s.playerDoneChanged(ctx, gameID, country, gs, done)
	}
	return gs, country, nil
}

func countryOf(gs *machiavelli.GameState, userID string) (string, error) {
	for _, p := range gs.UserPlayers() {
		if p.UserID == userID {
			return p.ID, nil
		}
	}
	return "", ErrNotInGame
}

func allDone(gs *machiavelli.GameState) bool {
	for _, p := range gs.UserPlayers() {
		if !p.Eliminated && !p.Done {
			return false
		}
	}
	return true
}

func doneCount(gs *machiavelli.GameState) int {
	n := 0
	for _, p := range gs.UserPlayers() {
		if p.Done {
			n++
		}
	}
	return n
}

func (s *PhaseService) playerDoneChanged(ctx context.Context, gameID, country string, gs *machiavelli.GameState, done bool) {
	l := logger.ForGame(ctx, gameID).With().Str("country", country).Logger()
	var err error
	if done {
		err = s.cache.MarkDone(ctx, gameID, country)
	} else {
		err = s.cache.UnmarkDone(ctx, gameID, country)
	}
	if err != nil {
		l.Error().Err(err).Bool("done", done).Msg("Failed to update done set")
	}
	s.armTimer(ctx, gameID, gs)
	s.broadcaster.BroadcastGameEvent(gameID, "player_done", map[string]any{
		"country":    country,
		"done":       done,
		"done_count": doneCount(gs),
	})
	if done && allDone(gs) {
		l.Info().Msg("All players done, checking phase")
		s.TriggerCheck(gameID)
	}
}

// armTimer points the timer and the phase deadline at the state's next
// phase change, which moves with karma and extensions.
func (s *PhaseService) armTimer(ctx context.Context, gameID string, gs *machiavelli.GameState) {
	deadline := machiavelli.NextPhaseChange(gs)
	if err := s.cache.SetTimer(ctx, gameID, deadline); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to set timer")
	}
	phase, err := s.phaseRepo.CurrentPhase(ctx, gameID)
	if err != nil || phase == nil {
		return
	}
	if !phase.Deadline.Equal(deadline) {
		if err := s.phaseRepo.UpdateDeadline(ctx, phase.ID, deadline); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Failed to update phase deadline")
		}
	}
}

// TriggerCheck runs CheckFinishedPhase in the background.
func (s *PhaseService) TriggerCheck(gameID string) {
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if _, err := s.CheckFinishedPhase(ctx, gameID); err != nil && !errors.Is(err, ErrAlreadyProcessing) {
			log.Error().Err(err).Str("gameId", gameID).Msg("Phase check failed")
		}
	})
}

// InitializeGame sets up the cache and timer when a game starts.
// Called after StartGame assigns countries and creates the first phase.
func (s *PhaseService) InitializeGame(ctx context.Context, gameID string, gs *machiavelli.GameState) error {
	if err := s.saveState(ctx, gameID, gs); err != nil {
		return err
	}
	if err := s.cache.SetTimer(ctx, gameID, machiavelli.NextPhaseChange(gs)); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}
	s.broadcaster.BroadcastGameEvent(gameID, string(machiavelli.EventGameStarted), map[string]any{
		"year":     gs.Year,
		"season":   gs.Season.String(),
		"phase":    gs.Phase.String(),
		"deadline": machiavelli.NextPhaseChange(gs).Format(time.RFC3339),
	})
	return nil
}

// RecoverActiveGames rehydrates Redis state for all active games from the
// database. Called on server startup to restore timers and state lost
// during a restart.
func (s *PhaseService) RecoverActiveGames(ctx context.Context) error {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	if len(games) == 0 {
		log.Info().Msg("No active games to recover")
		return nil
	}

	log.Info().Int("count", len(games)).Msg("Recovering active games after restart")

	for _, game := range games {
		phase, err := s.phaseRepo.CurrentPhase(ctx, game.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to get current phase during recovery")
			continue
		}
		if phase == nil {
			log.Warn().Str("gameId", game.ID).Msg("Active game has no current phase, skipping")
			continue
		}

		cached, err := s.cache.GetGameState(ctx, game.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to read cached state")
			continue
		}
		if cached == nil {
			if err := s.cache.SetGameState(ctx, game.ID, phase.State); err != nil {
				log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore game state")
				continue
			}
		}

		if err := s.cache.SetTimer(ctx, game.ID, phase.Deadline); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore timer")
		}

		log.Info().Str("gameId", game.ID).Str("phaseId", phase.ID).Str("phase", phase.Phase).
			Int("year", phase.Year).Str("season", phase.Season).
			Time("deadline", phase.Deadline).Bool("fromSnapshot", cached == nil).
			Msg("Recovered game state")
	}

	return nil
}

// CheckFinishedPhase closes the current phase of a game when every player
// is done or the deadline has passed. It returns ErrAlreadyProcessing when
// another worker holds the game.
func (s *PhaseService) CheckFinishedPhase(ctx context.Context, gameID string) (machiavelli.Outcome, error) {
	unlock, err := s.tryLock(ctx, gameID)
	if err != nil {
		return machiavelli.OutcomeNotReady, err
	}
	defer unlock()

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return machiavelli.OutcomeNotReady, fmt.Errorf("find game: %w", err)
	}
	if game == nil {
		return machiavelli.OutcomeNotReady, ErrGameNotFound
	}
	if game.Status != model.StatusActive {
		log.Info().Str("gameId", gameID).Str("status", game.Status).Msg("Skipping phase check for non-active game")
		return machiavelli.OutcomeNotReady, nil
	}

	gs, phase, err := s.loadState(ctx, gameID)
	if err != nil {
		return machiavelli.OutcomeNotReady, err
	}
	l := logger.ForGame(ctx, gameID).With().Str("phaseId", phase.ID).Logger()

	seed := s.seed()
	now := s.now()
	outcome, res, err := machiavelli.CheckFinishedPhase(gs, s.sc, now, machiavelli.NewDice(seed))
	if err != nil {
		l.Error().Err(err).Bool("alert", true).Int64("seed", seed).
			Str("phase", gs.Phase.String()).Str("season", gs.Season.String()).Int("year", gs.Year).
			Msg("Turn processing failed, phase left open")
		return outcome, err
	}

	switch outcome {
	case machiavelli.OutcomeNotReady:
		l.Debug().Msg("Phase not ready")
		return outcome, nil
	case machiavelli.OutcomeForced:
		if err := s.applyForced(ctx, game, gs, res); err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	next, err := s.commit(ctx, game, phase, gs, res, seed, now)
	if err != nil {
		l.Error().Err(err).Bool("alert", true).Int64("seed", seed).Msg("Failed to commit turn")
		return machiavelli.OutcomeNotReady, err
	}
	l.Info().Str("outcome", outcome.String()).Int64("seed", seed).Int("events", len(res.Events)).
		Int("logLines", len(res.Log)).Msg("Phase processed")
	s.notify(game, phase, next, gs, res)
	return outcome, nil
}

// applyForced stores the result of a passed deadline that did not close
// the phase: the extension, revolutions and the players forced to finish.
func (s *PhaseService) applyForced(ctx context.Context, game *model.Game, gs *machiavelli.GameState, res *machiavelli.TurnResult) error {
	if err := s.saveState(ctx, game.ID, gs); err != nil {
		return err
	}
	for _, p := range gs.UserPlayers() {
		if p.Done {
			if err := s.cache.MarkDone(ctx, game.ID, p.ID); err != nil {
				return fmt.Errorf("mark done: %w", err)
			}
		}
	}
	s.armTimer(ctx, game.ID, gs)
	for userID, delta := range karmaChanges(res.Events) {
		if err := s.gameRepo.AdjustKarma(ctx, userID, delta); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Str("userId", userID).Msg("Failed to adjust karma")
		}
	}
	log.Info().Str("gameId", game.ID).Bool("extended", gs.ExtendedDeadline).
		Time("deadline", machiavelli.NextPhaseChange(gs)).Msg("Deadline passed, phase forced")
	s.broadcastEvents(game.ID, res.Events)
	s.broadcaster.BroadcastGameEvent(game.ID, "deadline_extended", map[string]any{
		"deadline": machiavelli.NextPhaseChange(gs).Format(time.RFC3339),
	})
	return nil
}

func karmaChanges(events []machiavelli.Event) map[string]int {
	changes := make(map[string]int)
	for _, e := range events {
		if e.Kind == machiavelli.EventKarmaChanged && e.Target != "" {
			changes[e.Target] += e.Value
		}
	}
	return changes
}

func seatChanges(events []machiavelli.Event) map[string]string {
	seats := make(map[string]string)
	for _, e := range events {
		if e.Kind == machiavelli.EventGovernmentOverthrown && e.Target != "" {
			seats[e.Player] = e.Target
		}
	}
	return seats
}

func toModelEvents(events []machiavelli.Event) []model.TurnEvent {
	out := make([]model.TurnEvent, len(events))
	for i, e := range events {
		out[i] = model.TurnEvent{
			Kind:    string(e.Kind),
			Country: e.Player,
			Target:  e.Target,
			Area:    e.Area,
			Unit:    e.Unit,
			Value:   e.Value,
		}
	}
	return out
}

// commit writes a processed turn in one transaction and then refreshes the
// cache. It returns the new phase, nil when the game is over.
func (s *PhaseService) commit(
	ctx context.Context,
	game *model.Game,
	phase *model.Phase,
	gs *machiavelli.GameState,
	res *machiavelli.TurnResult,
	seed int64,
	now time.Time,
) (*model.Phase, error) {
	stateAfter, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("marshal state after: %w", err)
	}
	tc := &model.TurnCommit{
		GameID:     game.ID,
		PhaseID:    phase.ID,
		StateAfter: stateAfter,
		Log:        res.Log,
		Seed:       seed,
		Events:     toModelEvents(res.Events),
		Winner:     res.Winner,
		Seats:      seatChanges(res.Events),
		Karma:      karmaChanges(res.Events),
		ResolvedAt: now,
	}
	var deadline time.Time
	if !res.Finished {
		deadline = machiavelli.NextPhaseChange(gs)
		tc.Next = &model.NextPhase{
			Year:     gs.Year,
			Season:   gs.Season.String(),
			Phase:    gs.Phase.String(),
			Deadline: deadline,
		}
	}
	next, err := s.phaseRepo.CommitTurn(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	if res.Finished {
		if err := s.cache.DeleteGameData(ctx, game.ID); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to delete cached game data")
		}
		return nil, nil
	}
	if err := s.cache.ClearPhaseData(ctx, game.ID); err != nil {
		log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to clear phase data")
	}
	if err := s.cache.SetGameState(ctx, game.ID, stateAfter); err != nil {
		log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to cache new state")
	}
	for _, p := range gs.UserPlayers() {
		if p.Done {
			if err := s.cache.MarkDone(ctx, game.ID, p.ID); err != nil {
				log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to mark done")
			}
		}
	}
	if err := s.cache.SetTimer(ctx, game.ID, deadline); err != nil {
		log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to set timer")
	}
	return next, nil
}

// broadcastEvents sends domain events. The phase change and the end of the
// game are announced separately.
func (s *PhaseService) broadcastEvents(gameID string, events []machiavelli.Event) {
	for _, e := range events {
		if e.Kind == machiavelli.EventNewPhase || e.Kind == machiavelli.EventGameOver {
			continue
		}
		s.broadcaster.BroadcastGameEvent(gameID, string(e.Kind), map[string]any{
			"country": e.Player,
			"target":  e.Target,
			"area":    e.Area,
			"unit":    e.Unit,
			"value":   e.Value,
		})
	}
}

// notify tells clients about a committed turn and requests a map render.
func (s *PhaseService) notify(game *model.Game, phase, next *model.Phase, gs *machiavelli.GameState, res *machiavelli.TurnResult) {
	s.broadcaster.BroadcastGameEvent(game.ID, "phase_resolved", map[string]any{
		"phase_id": phase.ID,
		"year":     phase.Year,
		"season":   phase.Season,
		"phase":    phase.Phase,
		"log":      res.Log,
	})
	s.broadcastEvents(game.ID, res.Events)

	if next == nil {
		s.broadcaster.BroadcastGameEvent(game.ID, "game_ended", map[string]any{
			"winner": res.Winner,
		})
	} else {
		s.broadcaster.BroadcastGameEvent(game.ID, string(machiavelli.EventNewPhase), map[string]any{
			"phase_id": next.ID,
			"year":     next.Year,
			"season":   next.Season,
			"phase":    next.Phase,
			"deadline": next.Deadline.Format(time.RFC3339),
		})
	}

	job := RenderJob{
		GameID:      game.ID,
		PhaseID:     phase.ID,
		Year:        gs.Year,
		Season:      gs.Season.String(),
		Phase:       gs.Phase.String(),
		RequestedAt: s.now(),
	}
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.renderer.RequestRender(ctx, job); err != nil {
			log.Warn().Err(err).Str("gameId", job.GameID).Msg("Map render request failed")
		}
	})
}

// ListPhases returns the phase history of a game.
func (s *PhaseService) ListPhases(ctx context.Context, gameID string) ([]model.Phase, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return s.phaseRepo.ListPhases(ctx, gameID)
}

// PhaseEvents returns the events of a resolved phase.
func (s *PhaseService) PhaseEvents(ctx context.Context, phaseID string) ([]model.TurnEvent, error) {
	return s.phaseRepo.EventsByPhase(ctx, phaseID)
}
