package main

import (
	"context"
	"errors"
	"fmt"

	"bpdiary/internal/adapter/memory"
	"bpdiary/internal/adapter/notify"
	"bpdiary/internal/adapter/postgres"
	"bpdiary/internal/adapter/redisfeed"
	"bpdiary/internal/config"
	"bpdiary/internal/domain"

	"go.uber.org/zap"
)

// backends holds the adapters selected by the configuration.
type backends struct {
	slots    domain.SlotRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	health   domain.HealthStore

	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}
	mem := memory.New()

	var pg *postgres.DB
	if cfg.SlotStore == config.BackendPostgres || cfg.HealthStore == config.BackendPostgres {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		pg = db
		b.closers = append(b.closers, db.Close)
	}

	switch cfg.SlotStore {
	case config.BackendPostgres:
		b.slots = postgres.NewSlotRepo(pg)
		b.users = pg
		b.sessions = postgres.NewSessionRepo(pg)
	default:
		b.slots = mem.NewSlotRepo()
		b.users = mem
		b.sessions = mem.NewSessionRepo()
	}

	switch cfg.HealthStore {
	case config.BackendPostgres:
		b.health = postgres.NewHealthStore(pg, cfg.PollInterval)
	case config.BackendRedis:
		client := redisfeed.NewClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = b.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		b.closers = append(b.closers, client.Close)
		b.health = redisfeed.New(client, cfg.Redis, log.Named("redisfeed"))
	default:
		b.health = memory.NewHealthStore()
	}

	log.Info("backends ready",
		zap.String("slot_store", cfg.SlotStore),
		zap.String("health_store", cfg.HealthStore),
	)
	return b, nil
}

// newPublisher picks MQTT when a broker is configured and the log otherwise.
func newPublisher(cfg config.MQTTConfig, log *zap.Logger) (notify.Publisher, func(), error) {
	if cfg.Broker == "" {
		return notify.NewLogPublisher(log.Named("reminder")), func() {}, nil
	}
	p, err := notify.NewMQTTPublisher(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("reminders published over mqtt", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return p, p.Close, nil
}
