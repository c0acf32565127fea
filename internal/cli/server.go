package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/config"
	"zone-competition-service/internal/domain"
	"zone-competition-service/internal/infra/memory"
	pgloader "zone-competition-service/internal/infra/postgres"
	redisinfra "zone-competition-service/internal/infra/redis"
	transport "zone-competition-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the competition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
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
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.EventLoader = memory.NewStaticEventLoader(sampleEvents())
	if pool != nil {
		loader = pgloader.NewEventLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var events app.EventRepository
	if redisClient != nil {
		events = redisinfra.NewEventRepository(redisClient, loader, contentTTL)
	} else {
		events = memory.NewEventRepository(loader, contentTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	presenceTTL := config.TTLDuration(cfg.Presence.TTL, 45*time.Second)
	var presence app.PresenceStore
	if redisClient != nil {
		presence = redisinfra.NewPresenceStore(redisClient, presenceTTL)
	} else {
		presence = memory.NewPresenceStore(presenceTTL)
	}

	service := app.NewCompetitionService(store, events, presence)

	sweep := config.TTLDuration(cfg.Rounds.Sweep, 15*time.Second)
	staleness := config.TTLDuration(cfg.Rounds.Staleness, 5*time.Minute)
	scheduler := app.NewRoundScheduler(service, sweep, staleness)
	if err := scheduler.Start(); err != nil {
		return err
	}

	hostKey := cfg.Host.Key
	if k := os.Getenv("HOST_KEY"); k != "" {
		hostKey = k
	}
	pollInterval := config.TTLDuration(cfg.Presence.Poll, 15*time.Second)
	wsHandler := transport.NewWSHandler(service, hostKey, pollInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting competition service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleEvents provides demo content; swap the loader for the Postgres-backed
// one in production.
func sampleEvents() map[string]domain.Event {
	secondRoundStart := time.Now().Add(5 * time.Minute)
	return map[string]domain.Event{
		"event-1": {
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
						{
							ID:            "q2",
							Ordinal:       2,
							Prompt:        "Which planet is closest to the sun?",
							Options:       []string{"Venus", "Mercury", "Mars"},
							CorrectOption: 1,
							Points:        10,
							TimeLimitSec:  20,
						},
					},
				},
				{
					ID:             "round-2",
					Name:           "Speed Round",
					Ordinal:        2,
					ScheduledStart: &secondRoundStart,
					Questions: []domain.Question{
						{
							ID:            "q3",
							Ordinal:       1,
							Prompt:        "How many continents are there?",
							Options:       []string{"5", "6", "7"},
							CorrectOption: 2,
							Points:        20,
							TimeLimitSec:  10,
						},
					},
				},
			},
		},
	}
}
