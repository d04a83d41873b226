package app

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "app-test")
}

func postgresTestDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("STOREFRONT_POSTGRES_TEST_DSN is not set")
	}
	return dsn
}

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), quietLogger())
	require.NoError(t, err)
	defer deps.close(quietLogger())

	assert.NotNil(t, deps.orders)
	assert.NotNil(t, deps.carts)
	assert.NotNil(t, deps.timeline)
	assert.NotNil(t, deps.outbox)
	assert.NotNil(t, deps.idempotencyRepo)
	assert.Empty(t, deps.checkers, "memory storage has nothing to probe")

	identity, err := deps.catalog.ResolveToken(context.Background(), memory.DemoAdminToken)
	require.NoError(t, err)
	assert.True(t, identity.IsAdmin())
}

func TestInitRuntimeDependencies_MemoryWithoutSeed(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SeedDemo = false

	deps, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	_, err = deps.catalog.ResolveToken(context.Background(), memory.DemoUserToken)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres

	_, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"

	_, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestInitRuntimeDependencies_UnreachableRedis(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CartDriver = CartDriverRedis
	cfg.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deps, err := initRuntimeDependencies(ctx, cfg, quietLogger())
	require.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestInitRuntimeDependencies_Postgres(t *testing.T) {
	dsn := postgresTestDSN(t)

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	deps, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	defer deps.close(quietLogger())

	require.Contains(t, deps.checkers, "postgres")
	assert.Equal(t, healthcheck.StatusHealthy, deps.checkers["postgres"].Check(context.Background()).Status)

	products, err := deps.catalog.GetProducts(context.Background(), []string{"prod-mug"})
	require.NoError(t, err)
	assert.Contains(t, products, "prod-mug")

	identity, err := deps.catalog.ResolveToken(context.Background(), memory.DemoUserToken)
	require.NoError(t, err)
	assert.Equal(t, "user-demo", identity.UserID)
}

func TestRuntimeDependencies_CloseRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	deps := &runtimeDependencies{closers: []func() error{
		func() error { order = append(order, "postgres"); return nil },
		func() error { order = append(order, "redis"); return io.ErrClosedPipe },
	}}

	deps.close(quietLogger())
	deps.close(quietLogger())

	assert.Equal(t, []string{"redis", "postgres"}, order)
}
