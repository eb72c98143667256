package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/scheduler"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/usecase"

	// Domain
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/messaging"
	natsInfra "github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/observability/metrics"
	redisstore "github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/store/redis"

	// Interfaces
	httpInterface "github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/interfaces/http"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/interfaces/http/handler"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/config"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "traffic-ingest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Инициализируем logger
	log := logger.New(cfg.LogLevel)
	log.Info("Starting traffic ingest", "tag", cfg.Server.Tag, "sinks", cfg.Emit.Sinks)

	// Сигналы прерывают и ожидание Redis, и работу сервера
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Подключаемся к Redis, повторяя попытки до успеха
	store := redisstore.NewStore(redisstore.NewClient(redisstore.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))
	defer store.Close()

	if err := redisstore.WaitForStore(ctx, store, cfg.Redis.ConnectBackoff, cfg.Redis.OpTimeout, log); err != nil {
		return fmt.Errorf("redis is not reachable: %w", err)
	}

	clock := quartz.NewReal()

	// 4. Наблюдаемость
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry, httpInterface.IngestPath(cfg.Server.Tag))

	// 5. Получатели событий
	var hub *wsInfra.Hub
	emitter, err := buildEmitter(ctx, cfg, log, func(h *wsInfra.Hub) { hub = h })
	if err != nil {
		return err
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			log.Warn("Failed to close emit sinks", "error", err.Error())
		}
	}()

	var mirror port.SnapshotPublisher
	if cfg.CloudWatch.MetricsEnabled {
		mirror, err = cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:       cfg.CloudWatch.Namespace,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: map[string]string{
				"Tag": cfg.Server.Tag,
			},
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize CloudWatch metrics: %w", err)
		}
		log.Info("CloudWatch metrics mirror enabled", "namespace", cfg.CloudWatch.Namespace)
	}

	// 6. Domain и Application
	aggregator := service.NewMetricsAggregator()
	appMetrics.RegisterPending(aggregator.Pending)

	tracker := usecase.NewLastActionTracker(store, clock, usecase.LastActionConfig{
		KeyPrefix:   cfg.Redis.LastUpdatePrefix,
		GracePeriod: cfg.Redis.GracePeriod,
		OpTimeout:   cfg.Redis.OpTimeout,
	}, appMetrics, log)

	ingestUC := usecase.NewIngestEventUseCase(
		service.NewEventParser(),
		aggregator,
		tracker,
		emitter,
		clock,
		cfg.Server.Tag,
		appMetrics,
		log,
	)

	flushUC := usecase.NewFlushMetricsUseCase(
		aggregator,
		store,
		mirror,
		clock,
		usecase.FlushMetricsConfig{
			KeyPrefix: cfg.Redis.MetricsPrefix,
			Timeout:   cfg.Redis.FlushTimeout,
		},
		appMetrics,
		log,
	)

	// 7. Фоновые процессы
	schedCtx, cancelSched := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		scheduler.NewFlushScheduler(flushUC, clock, cfg.Redis.FlushInterval, log).Run(schedCtx)
	}()

	// 8. HTTP
	var tailHandler *handler.TailHandler
	if hub != nil {
		tailHandler = handler.NewTailHandler(hub, cfg.Tail.AllowedOrigins, log)
	}

	router := httpInterface.NewRouter(
		cfg.Server.Tag,
		handler.NewIngestHandler(ingestUC, cfg.Server.MaxBodyBytes, log),
		handler.NewHealthHandler(store, cfg.Redis.OpTimeout, log),
		tailHandler,
		appMetrics,
		registry,
		middleware.NewShedder(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "addr", server.Addr, "path", httpInterface.IngestPath(cfg.Server.Tag))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 9. Ожидаем сигнал или падение сервера
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", err)
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Сначала перестаем принимать события, затем сбрасываем накопленное
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	cancelSched()
	<-schedDone

	if mirror != nil {
		if err := mirror.Flush(shutdownCtx); err != nil {
			log.Warn("Failed to flush CloudWatch metrics", "error", err.Error())
		}
	}

	log.Info("Server stopped gracefully")
	return runErr
}

// buildEmitter собирает получателей событий из EMIT_SINKS
func buildEmitter(ctx context.Context, cfg *config.Config, log *logger.Logger, onHub func(*wsInfra.Hub)) (*messaging.FanOut, error) {
	sinks := make([]port.EventEmitter, 0, len(cfg.Emit.Sinks))
	closeAll := func() {
		_ = messaging.NewFanOut(sinks...).Close()
	}

	if cfg.HasSink(config.SinkLog) {
		sinks = append(sinks, messaging.NewLogEmitter(log))
	}

	if cfg.HasSink(config.SinkNATS) {
		publisher, err := natsInfra.NewPublisher(natsInfra.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			JetStream:     cfg.NATS.JetStream,
		}, log)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialize NATS sink: %w", err)
		}
		sinks = append(sinks, publisher)
	}

	if cfg.HasSink(config.SinkCloudWatch) {
		publisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.CloudWatch.BufferSize,
			FlushInterval:   cfg.CloudWatch.FlushInterval,
			AutoCreate:      cfg.CloudWatch.AutoCreate,
		}, log)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialize CloudWatch Logs sink: %w", err)
		}
		sinks = append(sinks, publisher)
	}

	if cfg.HasSink(config.SinkTail) {
		hub := wsInfra.NewHub(log)
		go hub.Run(ctx)
		onHub(hub)
		sinks = append(sinks, hub)
	}

	return messaging.NewFanOut(sinks...), nil
}
