package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/challenge/internal/clock"
	"example.com/challenge/internal/config"
	"example.com/challenge/internal/domain"
	"example.com/challenge/internal/notify"
	persistence "example.com/challenge/internal/persistence/postgres"
	"example.com/challenge/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wall, err := clock.NewWall(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	service := domain.NewService(repo, repo, repo, wall)

	notifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.ReminderTopic)
	defer notifier.Close()

	hour, minute, err := cfg.ReminderTime()
	if err != nil {
		log.Fatalf("invalid reminder time: %v", err)
	}

	scheduler := reminder.NewScheduler(service, notifier, wall, wall.Location(), hour, minute)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownCh
	cancel()

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("scheduler shutdown failed: %v", err)
	}
}
