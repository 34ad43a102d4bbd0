package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/atendimento"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/execution"
	"github.com/simas-gestao/simas/internal/metrics"
	"github.com/simas-gestao/simas/internal/reports"
	"github.com/simas-gestao/simas/internal/restore"
	"github.com/simas-gestao/simas/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS origins (dev mode)
	RequestTimeout time.Duration
}

// Server is the SIMAS HTTP API.
type Server struct {
	cfg        Config
	db         *db.DB
	auth       *session.Authenticator
	logger     *zap.Logger
	audit      *audit.Store
	entities   *entity.Store
	router     chi.Router
	httpServer *http.Server
}

// New wires the stores and services on database and builds the router.
func New(cfg Config, database *db.DB, auth *session.Authenticator, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	auditStore := audit.NewStore(database, logger)
	s := &Server{
		cfg:      cfg,
		db:       database,
		auth:     auth,
		logger:   logger,
		audit:    auditStore,
		entities: entity.NewStore(database, auditStore, logger),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := s.db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	svc := atendimento.NewService(s.entities, s.logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		// Static paths are registered before the generic entity routes;
		// chi prefers them regardless of order.
		atendimento.RegisterRoutes(r, svc, s.logger)
		execution.RegisterRoutes(r, execution.NewExecutor(s.entities, s.logger), s.logger)
		audit.RegisterRoutes(r, s.audit, s.logger)
		reports.RegisterRoutes(r, reports.NewService(s.entities, svc), s.logger)
		restore.RegisterRoutes(r, restore.NewEngine(s.entities, s.logger), s.logger)
		entity.RegisterRoutes(r, s.entities, s.logger)
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Entities returns the audited entity store.
func (s *Server) Entities() *entity.Store { return s.entities }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("simas server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
