package server

import (
	"fmt"
	"net/http"
	"time"

	"ntrli-bot/internal/config"
	"ntrli-bot/internal/database"
	custommiddleware "ntrli-bot/internal/middleware"
	"ntrli-bot/internal/outbox"
	"ntrli-bot/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Deps are the components the HTTP surface exposes. DB and GatewayLimiter
// may be nil. Live must be the predicate the bot is gated by.
type Deps struct {
	DB     database.Service
	Bot    transport.Dispatcher
	Outbox outbox.Outbox
	Live   func() bool
	// GatewayLimiter caps update intake per client address. Chat senders
	// share the gateway address, so its budget must cover all of them.
	GatewayLimiter custommiddleware.Limiter
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if deps.Live == nil {
		deps.Live = func() bool { return true }
	}

	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Bot online"))
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok", "live": deps.Live()}
		status := http.StatusOK
		if deps.DB != nil {
			health := deps.DB.Health(r.Context())
			body["database"] = health
			if health["status"] != "up" {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		custommiddleware.RespondWithJSON(w, status, body)
	})

	updateHandler := transport.NewUpdateHandler(deps.Bot, deps.Outbox, logger.Named("transport"))

	var intake []func(http.Handler) http.Handler
	if deps.GatewayLimiter != nil {
		intake = append(intake, custommiddleware.RateLimitMiddleware(deps.GatewayLimiter, custommiddleware.ClientAddress, logger))
	}
	updateHandler.RegisterRoutes(router, intake...)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     deps.DB,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
