package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/domain"
	pgloader "zone-competition-service/internal/infra/postgres"
	pgmigrations "zone-competition-service/internal/infra/postgres/migrations"
	infraredis "zone-competition-service/internal/infra/redis"
)

func TestCompetitionRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedEvent(t, ctx, pgURL, sampleEvent())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewEventLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	events := infraredis.NewEventRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	presence := infraredis.NewPresenceStore(redisClient, time.Minute)
	service := app.NewCompetitionService(sessionStore, events, presence)

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(ctx, "event-1", "u2", "Bob", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.ActivateRound("event-1", "round-1"); err != nil {
		t.Fatalf("activate round: %v", err)
	}
	if _, _, err := service.OpenQuestion("event-1", "round-1", "q1"); err != nil {
		t.Fatalf("open question: %v", err)
	}

	result, err := service.SubmitAnswer(ctx, "event-1", "u2", "q1", 1, 850)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Accepted() || result.Outcome == nil {
		t.Fatalf("expected accepted submission, got %+v", result)
	}
	if !result.Outcome.Correct || result.Outcome.TotalScore != 10 {
		t.Fatalf("expected correct answer worth 10, got %+v", result.Outcome)
	}
	if len(result.Leaderboard.Entries) != 2 || result.Leaderboard.Entries[0].UserID != "u2" {
		t.Fatalf("expected bob leading, got %+v", result.Leaderboard.Entries)
	}

	viewers, err := service.ViewerCount(ctx, "event-1")
	if err != nil {
		t.Fatalf("viewer count: %v", err)
	}
	if viewers != 2 {
		t.Fatalf("expected 2 viewers, got %d", viewers)
	}

	if _, err := service.CloseQuestion("event-1", "q1"); err != nil {
		t.Fatalf("close question: %v", err)
	}
	late, err := service.SubmitAnswer(ctx, "event-1", "u1", "q1", 1, 4000)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if late.Verdict != domain.VerdictQuestionClosed {
		t.Fatalf("expected closed verdict after close, got %s", late.Verdict)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "zone", "POSTGRES_PASSWORD": "zonepass", "POSTGRES_DB": "zonedb"},
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
	dsn := fmt.Sprintf("postgres://zone:zonepass@%s:%s/zonedb?sslmode=disable", host, port.Port())
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

func seedEvent(t *testing.T, ctx context.Context, dsn string, event domain.Event) {
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

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO events (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, event.ID, string(data)); err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:    "event-1",
		Title: "Launch Night",
		Rounds: []domain.Round{
			{
				ID:      "round-1",
				Name:    "Warmup",
				Ordinal: 1,
				Questions: []domain.Question{
					{
						ID:            "q1",
						Ordinal:       1,
						Prompt:        "What is 2 + 2?",
						Options:       []string{"3", "4", "5"},
						CorrectOption: 1,
						Points:        10,
						TimeLimitSec:  20,
					},
				},
			},
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
