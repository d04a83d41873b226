package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// catalogStore объединяет каталог товаров, справочник пользователей и проверку токенов.
type catalogStore interface {
	domain.ProductCatalog
	domain.UserDirectory
	domain.IdentityResolver
}

// runtimeDependencies содержит хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	orders          domain.OrderRepository
	carts           domain.CartRepository
	timeline        domain.TimelineRepository
	outbox          domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	catalog         catalogStore

	checkers map[string]healthcheck.Checker
	closers  []func() error
}

// initRuntimeDependencies открывает хранилища. При ошибке уже открытые ресурсы закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps = &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}
	defer func() {
		if err != nil {
			deps.close(logger)
			deps = nil
		}
	}()

	var store *postgres.Store
	if cfg.usesPostgres() {
		store, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return deps, err
		}
		deps.closers = append(deps.closers, store.Close)
		deps.checkers["postgres"] = healthcheck.NewCriticalChecker("postgres", store.Ping)

		if cfg.PostgresAutoMigrate {
			if err = store.EnsureSchema(ctx); err != nil {
				return deps, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		catalog := memory.NewCatalog()
		if cfg.SeedDemo {
			memory.SeedDemo(catalog)
			logger.Info("demo catalog seeded")
		}
		deps.catalog = catalog
		deps.orders = memory.NewOrderRepository()
		deps.timeline = memory.NewTimelineRepository()
		deps.outbox = memory.NewOutboxRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
	case StorageDriverPostgres:
		catalog := postgres.NewCatalog(store)
		if cfg.SeedDemo {
			if err = seedPostgresCatalog(ctx, catalog); err != nil {
				return deps, err
			}
			logger.Info("demo catalog seeded")
		}
		deps.catalog = catalog
		deps.orders = postgres.NewOrderRepository(store)
		deps.timeline = postgres.NewTimelineRepository(store)
		deps.outbox = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	default:
		return deps, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.cartDriver() {
	case StorageDriverMemory:
		deps.carts = memory.NewCartRepository()
	case StorageDriverPostgres:
		deps.carts = postgres.NewCartRepository(store)
	case CartDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		deps.closers = append(deps.closers, client.Close)
		if err = client.Ping(ctx).Err(); err != nil {
			return deps, fmt.Errorf("ping redis: %w", err)
		}
		deps.carts = redisstore.NewCartRepository(client, cfg.RedisKeyPrefix)
		deps.checkers["redis"] = healthcheck.NewCriticalChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	default:
		return deps, fmt.Errorf("unsupported cart driver %q", cfg.CartDriver)
	}

	logger.WithFields(log.Fields{
		"storage_driver": cfg.StorageDriver,
		"cart_driver":    cfg.cartDriver(),
	}).Info("storage initialized")
	return deps, nil
}

func seedPostgresCatalog(ctx context.Context, catalog *postgres.Catalog) error {
	for _, product := range memory.DemoProducts() {
		if err := catalog.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}
	for _, user := range memory.DemoUsers() {
		if err := catalog.UpsertUser(ctx, user.Identity, user.Token); err != nil {
			return fmt.Errorf("seed user %s: %w", user.Identity.UserID, err)
		}
	}
	return nil
}

// close освобождает ресурсы в порядке, обратном открытию.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if err := errors.Join(errs...); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
