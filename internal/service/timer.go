package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/repository"
	rediscache "github.com/freeeve/machiavelli/internal/repository/redis"
)

// DefaultPollInterval is how often the deadline poller looks for expired
// phases when none is configured.
const DefaultPollInterval = 10 * time.Second

// TimerListener listens for Redis keyspace notifications on expired timer keys
// and checks the game's phase when its timer expires. A poller over the phase
// deadlines catches expirations when keyspace notifications are unavailable.
type TimerListener struct {
	rdb       *redis.Client
	phaseSvc  *PhaseService
	phaseRepo repository.PhaseRepository
	interval  time.Duration
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, phaseSvc *PhaseService, phaseRepo repository.PhaseRepository, interval time.Duration) *TimerListener {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &TimerListener{rdb: rdb, phaseSvc: phaseSvc, phaseRepo: phaseRepo, interval: interval}
}

// Start begins listening for expired key events and runs the poller until
// ctx is cancelled.
func (t *TimerListener) Start(ctx context.Context) {
	if t.rdb != nil {
		go t.listenKeyspace(ctx)
	}
	t.pollExpiredPhases(ctx)
}

func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

func (t *TimerListener) pollExpiredPhases(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Msg("Phase deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Phase deadline poller stopped")
			return
		case <-ticker.C:
			t.checkExpiredPhases(ctx)
		}
	}
}

// checkExpiredPhases checks every game whose current phase is past its
// deadline.
func (t *TimerListener) checkExpiredPhases(ctx context.Context) {
	phases, err := t.phaseRepo.ListExpired(ctx, t.phaseSvc.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired phases")
		return
	}
	if len(phases) > 0 {
		log.Info().Int("count", len(phases)).Msg("Poller found expired phases")
	}
	for _, p := range phases {
		log.Info().Str("gameId", p.GameID).Str("phase", p.Phase).
			Int("year", p.Year).Str("season", p.Season).
			Time("deadline", p.Deadline).Msg("Poller checking expired phase")
		t.check(ctx, p.GameID, "poller")
	}
}

// handleExpiry processes an expired key. Only game timer keys are acted on.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	gameID, ok := rediscache.GameIDFromTimerKey(key)
	if !ok {
		return
	}
	log.Info().Str("gameId", gameID).Msg("Timer expired, checking phase")
	t.check(ctx, gameID, "timer")
}

func (t *TimerListener) check(ctx context.Context, gameID, source string) {
	outcome, err := t.phaseSvc.CheckFinishedPhase(ctx, gameID)
	if errors.Is(err, ErrAlreadyProcessing) {
		log.Debug().Str("gameId", gameID).Str("source", source).Msg("Game busy, skipping check")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("source", source).Msg("Phase check failed")
		return
	}
	log.Debug().Str("gameId", gameID).Str("source", source).Str("outcome", outcome.String()).Msg("Phase checked")
}
