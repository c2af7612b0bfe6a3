package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/auth"
	"github.com/freeeve/machiavelli/internal/config"
	"github.com/freeeve/machiavelli/internal/handler"
	"github.com/freeeve/machiavelli/internal/logger"
	"github.com/freeeve/machiavelli/internal/middleware"
	redisrepo "github.com/freeeve/machiavelli/internal/repository/redis"
	"github.com/freeeve/machiavelli/internal/repository/sqlstore"
	"github.com/freeeve/machiavelli/internal/service"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

func loadScenario(path string) (*machiavelli.Scenario, error) {
	if path == "" {
		return machiavelli.DefaultScenario()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return machiavelli.LoadScenario(f)
}

func main() {
	tokenFor := flag.String("token", "", "print a player token for this user ID and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logFile, err := logger.Init(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile, Color: cfg.Dev})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	if *tokenFor != "" {
		token, err := jwtMgr.GenerateAccessToken(*tokenFor)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to sign token")
		}
		fmt.Println(token)
		return
	}
	log.Info().Str("driver", cfg.DatabaseDriver).Str("port", cfg.Port).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc, err := loadScenario(cfg.ScenarioFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.ScenarioFile).Msg("Failed to load scenario")
	}
	log.Info().Str("scenario", sc.Name).Int("countries", len(sc.CountryKeys())).Msg("Scenario loaded")

	// Database
	store, err := sqlstore.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer store.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Deadlines arrive as key expiry events; the poller covers lost ones.
	if err := redisClient.Underlying().ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to enable Redis keyspace notifications, relying on polling")
	}

	gameRepo := sqlstore.NewGameRepo(store)
	phaseRepo := sqlstore.NewPhaseRepo(store)

	wsHub := handler.NewHub()

	// Services
	phaseSvc := service.NewPhaseService(gameRepo, phaseRepo, redisClient, sc, wsHub)
	phaseSvc.SetRenderer(service.NewQueueRenderer(redisClient))
	gameSvc := service.NewGameService(gameRepo, phaseRepo, phaseSvc)
	orderSvc := service.NewOrderService(gameRepo, phaseSvc)

	timerListener := service.NewTimerListener(redisClient.Underlying(), phaseSvc, phaseRepo, cfg.TimerPollInterval)

	// Router
	api := handler.API{
		Games:  handler.NewGameHandler(gameSvc),
		Orders: handler.NewOrderHandler(orderSvc),
		Phases: handler.NewPhaseHandler(gameSvc, phaseSvc),
	}
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, gameSvc.CanWatch, cfg.AllowedOrigin)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(limiter.Middleware(api.Mux()))))
	// WebSocket auth comes in the query string, not the header.
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigin), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rebuild the live cache from the database after a restart.
	if err := phaseSvc.RecoverActiveGames(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to recover active games (non-fatal)")
	}

	go timerListener.Start(ctx)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
