package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/hansol-oss/intrachat/internal/infrastructure/bus"
	"github.com/hansol-oss/intrachat/internal/infrastructure/configs"
	"github.com/hansol-oss/intrachat/internal/infrastructure/logging"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"github.com/hansol-oss/intrachat/internal/infrastructure/ratelimiter"
	"github.com/hansol-oss/intrachat/internal/infrastructure/sse"
	"github.com/hansol-oss/intrachat/internal/infrastructure/storage"
	"github.com/hansol-oss/intrachat/internal/infrastructure/tracing"
	"github.com/hansol-oss/intrachat/internal/infrastructure/ws"
	"github.com/hansol-oss/intrachat/internal/persistence/db"
	"github.com/hansol-oss/intrachat/internal/persistence/repository"
	"github.com/hansol-oss/intrachat/internal/presentation/api"
	"github.com/hansol-oss/intrachat/internal/presentation/handler/chats"
	"github.com/hansol-oss/intrachat/internal/presentation/handler/health"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "intrachat-api"

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.Logging)
	defer logger.Sync()

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalw("failed to run migrations", "error", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	eventBus := bus.New(logger, m, cfg.Chat.StreamBuffer)
	streamer := sse.NewStreamer(eventBus, logger, m, cfg.Chat.PingInterval)
	gateway := ws.NewGateway(eventBus, logger, m, cfg.Chat.PingInterval)

	fileStorage, err := storage.NewLocalStorage(cfg.Upload)
	if err != nil {
		logger.Fatalw("failed to prepare upload storage", "error", err)
	}

	chatRepository := repository.NewChatRepository(gormDB)
	messageRepository := repository.NewMessageRepository(gormDB)

	chatsHandler := chats.NewHandler(
		chatRepository,
		messageRepository,
		eventBus,
		streamer,
		gateway,
		fileStorage,
		logger,
		cfg.Chat,
	)
	healthHandler := health.NewHandler(gormDB)

	rl := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rl.Close()

	app := api.NewApplication(*cfg, chatsHandler, healthHandler, logger, rl, registry, fileStorage.Dir())

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}
