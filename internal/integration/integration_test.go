package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/attempt"
	"learnpath-quiz/internal/backend"
	"learnpath-quiz/internal/domain"
	pgloader "learnpath-quiz/internal/infra/postgres"
	pgmigrations "learnpath-quiz/internal/infra/postgres/migrations"
	infraredis "learnpath-quiz/internal/infra/redis"
	transport "learnpath-quiz/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type userID string

func (u userID) UserID() string { return string(u) }
func (u userID) Token() string  { return "" }

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	attemptStore := infraredis.NewAttemptStore(redisClient, 5*time.Minute)
	service := app.NewAttemptService(quizRepo, attemptStore, nil)

	server := httptest.NewServer(transport.NewRouter(transport.NewAPIHandler(service), transport.NewWSHandler(service), nil))
	defer server.Close()
	client := backend.NewClient(server.URL, 5*time.Second, userID("u1"))

	catalog, err := client.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("expected 2 quizzes, got %+v", catalog)
	}
	for _, q := range catalog {
		if q.Category != "math" || q.Difficulty != domain.DifficultyMedium {
			t.Fatalf("quiz not normalized: %+v", q)
		}
	}

	session, err := attempt.Bootstrap(ctx, client, "quiz-1")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer session.Close()

	for _, option := range []int{1, 0} {
		if err := session.Select(option); err != nil {
			t.Fatalf("select: %v", err)
		}
		if _, err := session.Submit(ctx); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	state := session.State()
	if state.Status != domain.AttemptFinished || state.Result == nil {
		t.Fatalf("expected finished session, got %+v", state)
	}
	if state.Result.Score != 50 || state.Result.CorrectAnswers != 1 {
		t.Fatalf("expected 1 of 2 correct, got %+v", state.Result)
	}

	history, err := service.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.AttemptFinished {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAdminQuizManagementEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL))), pgdialect.New())
	defer db.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, pgloader.NewQuizLoader(pool), 5*time.Minute)
	service := app.NewAttemptService(quizRepo, infraredis.NewAttemptStore(redisClient, 5*time.Minute), nil)
	admin := app.NewAdminService(quizRepo, pgloader.NewQuizWriter(db))

	// warm the catalog cache so the write has something to invalidate
	if list, err := service.ListQuizzes(ctx, "", ""); err != nil || len(list) != 2 {
		t.Fatalf("expected 2 quizzes before create, got %+v (%v)", list, err)
	}
	created, err := admin.CreateQuiz(ctx, domain.Quiz{
		Title:    "Capitals",
		Category: "geography",
		Questions: []domain.Question{
			{Prompt: "Capital of Spain?", Options: []string{"Madrid", "Lisbon"}, CorrectOption: 0},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if list, _ := service.ListQuizzes(ctx, "geography", ""); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected created quiz in catalog, got %+v", list)
	}

	started, err := service.StartAttempt(ctx, created.ID, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.SubmitAnswer(ctx, started.ID, domain.AnswerSubmission{QuestionIndex: 0, SelectedOption: 0}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.FinishAttempt(ctx, started.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	stats, err := service.QuizStats(ctx, created.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 1 || stats.AverageScore != 100 || stats.CompletionRate != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := admin.DeleteQuiz(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.GetQuiz(ctx, created.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected deleted quiz gone, got %v", err)
	}
	if err := admin.DeleteQuiz(ctx, created.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := pgloader.NewQuizWriter(db).Upsert(ctx, quiz); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	// stored documents may carry the legacy shape
	legacy := `{"_id": "quiz-legacy", "title": "Legacy", "subject": "math", "difficulty": "Intermediate",
		"questions": [{"question": "1+1", "options": ["1", "2"], "correct_answer": 1}]}`
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO NOTHING`, "quiz-legacy", legacy); err != nil {
		t.Fatalf("insert legacy quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Arithmetic",
		Category:   "math",
		Difficulty: domain.DifficultyMedium,
		TimeLimit:  2,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
			{ID: "q2", Prompt: "What is 9 - 3?", Options: []string{"5", "6"}, CorrectOption: 1},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
