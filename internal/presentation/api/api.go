package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hansol-oss/intrachat/internal/infrastructure/configs"
	"github.com/hansol-oss/intrachat/internal/infrastructure/ratelimiter"
	chatsHandler "github.com/hansol-oss/intrachat/internal/presentation/handler/chats"
	healthHandler "github.com/hansol-oss/intrachat/internal/presentation/handler/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Application struct {
	config        configs.Config
	chatsHandler  *chatsHandler.Handler
	healthHandler *healthHandler.Handler
	logger        *zap.SugaredLogger
	ratelimiter   ratelimiter.Limiter
	registry      *prometheus.Registry
	uploadsDir    string
}

func NewApplication(
	config configs.Config,
	chats *chatsHandler.Handler,
	health *healthHandler.Handler,
	logger *zap.SugaredLogger,
	limiter ratelimiter.Limiter,
	registry *prometheus.Registry,
	uploadsDir string,
) *Application {
	return &Application{
		config:        config,
		chatsHandler:  chats,
		healthHandler: health,
		logger:        logger,
		ratelimiter:   limiter,
		registry:      registry,
		uploadsDir:    uploadsDir,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Route("/chats", func(r chi.Router) {
			r.Use(app.requireUser)

			r.Get("/", app.chatsHandler.ListChatsHandler)
			r.Post("/start", app.chatsHandler.StartChatHandler)
			r.Post("/start-group", app.chatsHandler.StartGroupHandler)
			r.Post("/read-all", app.chatsHandler.MarkAllReadHandler)
			r.Get("/stream", app.chatsHandler.StreamHandler)
			r.Get("/stream/ws", app.chatsHandler.StreamWSHandler)

			r.Route("/{chatId}", func(r chi.Router) {
				r.Get("/messages", app.chatsHandler.ListMessagesHandler)
				r.Get("/around", app.chatsHandler.AroundHandler)
				r.Get("/search", app.chatsHandler.SearchHandler)
				r.Get("/members", app.chatsHandler.ListMembersHandler)
				r.Post("/message", app.chatsHandler.SendMessageHandler)
				r.Post("/attach", app.chatsHandler.AttachHandler)
				r.Post("/read", app.chatsHandler.MarkReadHandler)
				r.Post("/invite", app.chatsHandler.InviteHandler)
				r.Post("/leave", app.chatsHandler.LeaveHandler)
			})
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	fileServer := http.FileServer(http.Dir(app.uploadsDir))
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	return otelhttp.NewHandler(r, "intrachat-http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:     mux,
		ReadTimeout: app.config.HTTP.ReadTimeout,
		// WriteTimeout stays at the configured value; zero keeps SSE
		// connections open indefinitely.
		WriteTimeout: app.config.HTTP.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", srv.Addr)

	return nil
}
