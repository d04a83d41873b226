package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	httpsvc "github.com/vladislavdragonenkov/storefront/internal/service/http"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// application хранит собранный граф зависимостей процесса.
type application struct {
	cfg      Config
	logger   *log.Entry
	deps     *runtimeDependencies
	producer *kafka.Producer

	api     *httpsvc.Server
	health  *healthcheck.Handler
	outbox  *outbox.Worker
	cleanup *idempotency.CleanupWorker
}

// newApplication открывает хранилища и собирает сервисы, HTTP API и воркеры.
func newApplication(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*application, error) {
	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, logger: logger, deps: deps}

	storefrontMetrics := metrics.NewStorefrontMetricsWithRegisterer(registerer)
	carts := cart.NewManager(deps.carts, deps.catalog, logger.WithField("layer", "cart"),
		cart.WithMetrics(storefrontMetrics),
	)

	orderOpts := []order.Option{
		order.WithTimeline(deps.timeline),
		order.WithMetrics(storefrontMetrics),
	}

	a.health = healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		a.health.RegisterChecker(name, checker)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, kafkaErr := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
		if kafkaErr != nil {
			a.health.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
				return errKafkaUnavailable
			}))
		} else {
			a.producer = producer
			orderOpts = append(orderOpts, order.WithOutbox(deps.outbox))
			publisher := outbox.NewBreakerPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
				cfg.OutboxBreakerFailures, cfg.OutboxBreakerReset, logger.WithField("component", "outbox-breaker"))
			a.outbox = outbox.NewWorker(deps.outbox, publisher,
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)),
				outbox.WithMetrics(metrics.NewOutboxMetrics(registerer)),
				outbox.WithPollInterval(cfg.OutboxPollInterval),
				outbox.WithBatchSize(cfg.OutboxBatchSize),
				outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
				outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			)
		}
	}

	orders := order.NewManager(deps.orders, deps.catalog, deps.catalog, logger.WithField("layer", "order"), orderOpts...)

	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("component", "idempotency"))
	a.cleanup = idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithCleanupMetrics(metrics.NewCleanupMetrics(registerer)),
	)

	a.api = httpsvc.NewServer(carts, orders, deps.catalog, logger.WithField("layer", "http"),
		httpsvc.WithIdempotency(guard),
		httpsvc.WithMetrics(metrics.NewHTTPMetrics(registerer)),
	)
	return a, nil
}

// startWorkers запускает фоновые воркеры; wait блокируется до их остановки после отмены ctx.
func (a *application) startWorkers(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	if a.outbox != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.outbox.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cleanup.Run(ctx)
	}()
	return wg.Wait
}

// close останавливает внешние подключения.
func (a *application) close() {
	closeKafka(a.producer, a.logger)
	a.producer = nil
	a.deps.close(a.logger)
}

// Run поднимает HTTP API, сервер метрик и воркеры и блокируется до отмены ctx
// или ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	a, err := newApplication(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}
	defer a.close()

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(ctx)
	waitWorkers := a.startWorkers(workersCtx)
	defer func() {
		stopWorkers()
		waitWorkers()
	}()

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, a.health)
	apiSrv := &http.Server{Handler: a.api.Engine(), ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newMetricsMux отдаёт /metrics и пробы здоровья.
func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer запускает HTTP-сервер метрик и проб. Пустой addr отключает сервер.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	if addr == "" {
		return nil
	}

	srv := &http.Server{Addr: addr, Handler: newMetricsMux(healthHandler), ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
