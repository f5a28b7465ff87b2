package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/hedgebot/internal/book"
	"github.com/alanyoungcy/hedgebot/internal/cache/redis"
	"github.com/alanyoungcy/hedgebot/internal/config"
	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/executor"
	"github.com/alanyoungcy/hedgebot/internal/notify"
	"github.com/alanyoungcy/hedgebot/internal/platform/venue"
	"github.com/alanyoungcy/hedgebot/internal/registry"
	"github.com/alanyoungcy/hedgebot/internal/store/postgres"
	"github.com/alanyoungcy/hedgebot/internal/timing"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Pairs     []domain.InstrumentPair
	PairStore domain.PairStore

	Book    *book.Store
	Mirror  domain.BookMirror     // nil when Redis is disabled
	Bus     domain.EventBus       // fan-out over stream + chat, never nil
	Archive domain.SessionStore   // nil when Postgres is disabled
	Orders  executor.OrderClient

	Tracker *timing.Tracker
}

// fanoutBus publishes each event to every underlying bus and joins errors so
// one failing surface never silences the others.
type fanoutBus struct {
	buses []domain.EventBus
}

var _ domain.EventBus = (*fanoutBus)(nil)

func (f *fanoutBus) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	var errs []error
	for _, b := range f.buses {
		if err := b.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Pair registry ---
	pairs, err := registry.Load(cfg.Registry.PairsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}
	deps.Pairs = pairs
	deps.PairStore = registry.NewStatic(pairs)

	// --- In-memory book store ---
	deps.Book = book.NewStore(book.WithStalenessHorizon(cfg.Book.StalenessHorizon.Duration))

	// --- Timing ---
	deps.Tracker = timing.NewTracker(executor.CheckpointConfirmed,
		timing.WithMaxSessions(cfg.Timing.MaxSessions))

	// --- Redis (quote mirror + event stream) ---
	buses := []domain.EventBus{}
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Mirror = redis.NewQuoteMirror(redisClient, 2*cfg.Book.StalenessHorizon.Duration)
		buses = append(buses, redis.NewEventBus(redisClient, 0))
	}

	// --- PostgreSQL session archive ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.NewClient(ctx, postgres.ClientConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: int32(cfg.Postgres.PoolMaxConns),
			MinConns: int32(cfg.Postgres.PoolMinConns),
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Archive = postgres.NewSessionStore(pgClient, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		buses = append(buses, notify.NewNotifier(senders, cfg.Notify.Events, logger))
	}
	deps.Bus = &fanoutBus{buses: buses}

	// --- Order client ---
	if cfg.Executor.DryRun {
		deps.Orders = venue.NewDryRun()
	} else {
		deps.Orders = venue.NewClient(
			venue.Endpoints{
				domain.VenueA: cfg.Executor.VenueAOrderURL,
				domain.VenueB: cfg.Executor.VenueBOrderURL,
			},
			venue.Credentials{
				domain.VenueA: cfg.Executor.VenueAAPIKey,
				domain.VenueB: cfg.Executor.VenueBAPIKey,
			},
		)
	}

	return deps, cleanup, nil
}
