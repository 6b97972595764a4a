package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/attempt"
	"learnpath-quiz/internal/config"
	"learnpath-quiz/internal/domain"
	"learnpath-quiz/internal/events"
	"learnpath-quiz/internal/infra/memory"
	pgloader "learnpath-quiz/internal/infra/postgres"
	infraredis "learnpath-quiz/internal/infra/redis"
	transport "learnpath-quiz/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz backend (REST + live attempt websocket)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}
	attemptTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	static := memory.NewStaticQuizLoader(sampleQuizzes())
	var loader memory.QuizLoader = static
	var writer app.QuizWriter = static
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		writer = pgloader.NewQuizWriter(db)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.AttemptRepository
	if redisClient != nil {
		store = infraredis.NewAttemptStore(redisClient, attemptTTL)
	} else {
		store = memory.NewAttemptStore()
	}

	var publisher app.EventPublisher = events.LogPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.DialRabbit(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	service := app.NewAttemptService(quizRepo, store, publisher)
	defaultLimit := config.TTLDuration(cfg.Attempt.DefaultTimeLimit, attempt.DefaultTimeLimit)
	admin := app.NewAdminService(quizRepo, writer)
	router := transport.NewRouter(
		transport.NewAPIHandler(service).WithAdmin(admin),
		transport.NewWSHandler(service, attempt.WithDefaultTimeLimit(defaultLimit)),
		nil,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// sampleQuizzes is served when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Arithmetic warm-up",
			Description: "Three quick sums",
			Category:    "math",
			Difficulty:  domain.DifficultyEasy,
			TimeLimit:   1,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectOption: 1},
				{ID: "q2", Prompt: "What is 7 - 3?", Options: []string{"4", "10", "3", "21"}, CorrectOption: 0},
				{ID: "q3", Prompt: "What is 6 * 7?", Options: []string{"36", "48", "42", "13"}, CorrectOption: 2},
			},
		},
	}
}
