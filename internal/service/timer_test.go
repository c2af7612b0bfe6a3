package service

import (
	"context"
	"testing"
	"time"

	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

func TestTimerHandleExpiry(t *testing.T) {
	env := newTestEnv(t)
	gameID := env.startGame(t, CreateGameInput{TimeLimit: "1h"})
	env.phases.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	tl := NewTimerListener(nil, env.phases, env.phaseRepo, 0)
	if tl.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want default", tl.interval)
	}

	tl.handleExpiry(context.Background(), "game:"+gameID+":state")
	if env.state(t, gameID).ExtendedDeadline {
		t.Fatal("non-timer key triggered a check")
	}

	tl.handleExpiry(context.Background(), "game:"+gameID+":timer")
	if !env.state(t, gameID).ExtendedDeadline {
		t.Error("expired timer did not force the phase")
	}
}

func TestTimerPollsExpiredPhases(t *testing.T) {
	env := newTestEnv(t)
	expired := env.startGame(t, CreateGameInput{TimeLimit: "1h"})
	env.phases.now = func() time.Time { return testNow.Add(90 * time.Minute) }

	tl := NewTimerListener(nil, env.phases, env.phaseRepo, time.Second)
	tl.checkExpiredPhases(context.Background())

	gs := env.state(t, expired)
	if !gs.ExtendedDeadline {
		t.Fatal("poller did not force the expired phase")
	}
	if got := env.phaseRepo.current(expired).Deadline; !got.Equal(machiavelli.NextPhaseChange(gs)) {
		t.Errorf("deadline = %v, want %v", got, machiavelli.NextPhaseChange(gs))
	}

	// the moved deadline keeps the poller from forcing the phase again
	tl.checkExpiredPhases(context.Background())
	if len(env.phaseRepo.commits) != 0 {
		t.Error("phase processed before the extended deadline")
	}
}

func TestTimerSkipsBusyGame(t *testing.T) {
	env := newTestEnv(t)
	gameID := env.startGame(t, CreateGameInput{TimeLimit: "1h"})
	env.phases.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	env.cache.locks[gameID] = "other"

	tl := NewTimerListener(nil, env.phases, env.phaseRepo, time.Second)
	tl.handleExpiry(context.Background(), "game:"+gameID+":timer")
	if env.state(t, gameID).ExtendedDeadline {
		t.Error("busy game was checked")
	}
}

func TestTimerStartStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	tl := NewTimerListener(nil, env.phases, env.phaseRepo, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tl.Start(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
