package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/postgres"
	pgmigrations "quizroom-service/internal/infra/postgres/migrations"
	redisinfra "quizroom-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizWorkflowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := postgres.NewStore(pool)
	sessions := redisinfra.NewSessionStore(redisClient, 24*time.Hour)
	catalog := redisinfra.NewQuestionCache(redisClient, store, 5*time.Minute)
	service := app.NewRoomService(store, sessions, catalog)

	// Scenario A: Alice creates the room, Bob joins, room goes active,
	// Bob accepts.
	alice, err := service.JoinRoom(ctx, "Alice", "Trivia", true)
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	bob, err := service.JoinRoom(ctx, "Bob", "Trivia", false)
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if bob.RoomID != alice.RoomID {
		t.Fatalf("expected shared room")
	}
	if err := service.SetRoomActive(ctx, alice.Token, alice.RoomID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := service.AcceptQuiz(ctx, bob.Token, bob.RoomID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	state, err := service.RoomState(ctx, bob.Token, bob.RoomID)
	if err != nil {
		t.Fatalf("room state: %v", err)
	}
	if !state.IsActive || !state.HasAccepted {
		t.Fatalf("expected active+accepted, got %+v", state)
	}

	// Scenario B: one question, Bob answers correctly, results rank him.
	questionID, err := service.AddQuestion(ctx, alice.Token, alice.RoomID, "2+2?", []domain.AnswerInput{
		{Text: "3"},
		{Text: "4", Correct: true},
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}

	statuses, err := service.ListQuestions(ctx, bob.Token, bob.RoomID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 question, got %d", len(statuses))
	}
	var correctID string
	for _, answer := range statuses[0].Question.Answers {
		if answer.Text == "4" {
			correctID = answer.ID
		}
	}

	correct, err := service.SubmitAnswer(ctx, bob.Token, questionID, correctID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !correct {
		t.Fatalf("expected correct answer")
	}

	// Resubmitting must not inflate the score past 1.
	if _, err := service.SubmitAnswer(ctx, bob.Token, questionID, correctID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	results, err := service.GetResults(ctx, alice.Token, alice.RoomID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Bob" || results[0].Score != 1 {
		t.Fatalf("expected Bob leading with 1 point, got %+v", results)
	}

	// Re-join keeps the score.
	if _, err := service.JoinRoom(ctx, "Bob", "Trivia", false); err != nil {
		t.Fatalf("bob re-join: %v", err)
	}
	results, _ = service.GetResults(ctx, alice.Token, alice.RoomID)
	if results[0].Score != 1 {
		t.Fatalf("re-join reset score: %+v", results)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
