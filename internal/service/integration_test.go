//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/machiavelli/internal/model"
	redisrepo "github.com/freeeve/machiavelli/internal/repository/redis"
	"github.com/freeeve/machiavelli/internal/repository/sqlstore"
	"github.com/freeeve/machiavelli/internal/testutil"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

type integrationEnv struct {
	store  *sqlstore.Store
	cache  *redisrepo.Client
	phases *PhaseService
	games  *GameService
	orders *OrderService
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	store := testutil.SetupDB(t)
	rdb := testutil.SetupRedis(t)
	testutil.CleanupDB(t, store)
	testutil.CleanupRedis(t, rdb)

	sc, err := machiavelli.DefaultScenario()
	if err != nil {
		t.Fatalf("DefaultScenario: %v", err)
	}
	gameRepo := sqlstore.NewGameRepo(store)
	phaseRepo := sqlstore.NewPhaseRepo(store)
	cache := redisrepo.NewClientFromPool(rdb)
	phases := NewPhaseService(gameRepo, phaseRepo, cache, sc, nil)
	phases.spawn = func(f func()) { f() }
	phases.SetRenderer(NewQueueRenderer(cache))
	return &integrationEnv{
		store:  store,
		cache:  cache,
		phases: phases,
		games:  NewGameService(gameRepo, phaseRepo, phases),
		orders: NewOrderService(gameRepo, phases),
	}
}

func TestIntegrationPlayOnePhase(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t)
	u1, u2 := uuid.NewString(), uuid.NewString()

	game, err := env.games.CreateGame(ctx, u1, CreateGameInput{Name: "Italia", Country: "florence", UsesKarma: true})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := env.games.JoinGame(ctx, game.ID, u2, "milan"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if _, err := env.games.StartGame(ctx, game.ID, u1); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	gs, err := env.phases.State(ctx, game.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	unit := gs.UnitsOf("florence")[0]
	if _, err := env.orders.SubmitOrders(ctx, game.ID, u1, []OrderInput{{UnitID: unit.ID, Code: "H"}}); err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}
	if _, err := env.orders.Confirm(ctx, game.ID, u1); err != nil {
		t.Fatalf("Confirm u1: %v", err)
	}
	done, err := env.cache.DoneCountries(ctx, game.ID)
	if err != nil || len(done) != 1 || done[0] != "florence" {
		t.Fatalf("done = %v, err = %v", done, err)
	}
	if _, err := env.orders.Confirm(ctx, game.ID, u2); err != nil {
		t.Fatalf("Confirm u2: %v", err)
	}

	phases, err := env.phases.ListPhases(ctx, game.ID)
	if err != nil {
		t.Fatalf("ListPhases: %v", err)
	}
	if len(phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(phases))
	}
	if phases[0].ResolvedAt == nil || len(phases[0].StateAfter) == 0 {
		t.Errorf("first phase not resolved: %+v", phases[0])
	}
	if phases[1].Deadline.Before(time.Now()) {
		t.Errorf("next deadline %v already passed", phases[1].Deadline)
	}
	done, _ = env.cache.DoneCountries(ctx, game.ID)
	if len(done) != 0 {
		t.Errorf("done set carried into the new phase: %v", done)
	}

	stored, err := env.games.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if stored.Status != model.StatusActive {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestIntegrationRecover(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t)
	u1, u2 := uuid.NewString(), uuid.NewString()

	game, _ := env.games.CreateGame(ctx, u1, CreateGameInput{Name: "Italia"})
	_ = env.games.JoinGame(ctx, game.ID, u2, "")
	if _, err := env.games.StartGame(ctx, game.ID, u1); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := env.cache.DeleteGameData(ctx, game.ID); err != nil {
		t.Fatalf("DeleteGameData: %v", err)
	}

	if err := env.phases.RecoverActiveGames(ctx); err != nil {
		t.Fatalf("RecoverActiveGames: %v", err)
	}
	data, err := env.cache.GetGameState(ctx, game.ID)
	if err != nil || data == nil {
		t.Fatalf("state not restored: %v", err)
	}
}
