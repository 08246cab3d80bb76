package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ninetyminutes/trivia-duel/internal/auth"
	"github.com/ninetyminutes/trivia-duel/internal/config"
	"github.com/ninetyminutes/trivia-duel/internal/db/repository"
	"github.com/ninetyminutes/trivia-duel/internal/logging"
	"github.com/ninetyminutes/trivia-duel/internal/matchmaking"
	"github.com/ninetyminutes/trivia-duel/internal/server"
	"github.com/ninetyminutes/trivia-duel/internal/trivia"
	ws "github.com/ninetyminutes/trivia-duel/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps configs, logger, Postgres, Redis and the HTTP server with
// both WebSocket endpoints.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	historyRepo := repository.NewHistoryRepository()
	questionRepo := repository.NewQuestionRepository(pool)
	matchRepo := repository.NewMatchRepository(pool, historyRepo)

	tokens := auth.NewManager(auth.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	// Separate hubs so one user can hold a matchmaking connection and a
	// trivia connection at the same time; each hub maps an identity to at
	// most one connection.
	queueHub := ws.NewHub(logger)
	matchHub := ws.NewHub(logger)

	stateStore := trivia.NewStateStore(redisClient, cfg.Game.StateTTL)
	gameSvc := trivia.NewService(questionRepo, matchRepo, stateStore, cfg.Game.QuestionsPerMatch, logger)
	registry := trivia.NewRegistry(gameSvc, matchHub, cfg.Game.MatchDuration, cfg.Game.TickInterval, logger)

	queue := matchmaking.NewQueue(redisClient, logger)
	queueHandler := matchmaking.NewHandler(queue, matchRepo, queueHub, tokens, &server.WSUpgrader, logger)
	triviaHandler := trivia.NewHandler(registry, matchHub, tokens, &server.WSUpgrader, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, queueHandler.HandleWebSocket, triviaHandler.HandleWebSocket)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
