// Package api exposes the dashboard store over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/monitoring"
)

type Server struct {
	store          Store
	tokens         *auth.JWTManager
	authz          *auth.Authorizer
	workflow       Workflow
	monitor        *monitoring.Monitor
	cfg            config.ServerConfig
	callbackSecret string
	logger         *logrus.Logger

	httpServer *http.Server
}

// Deps bundles what NewServer wires together. Workflow and Monitor may be nil.
type Deps struct {
	Store          Store
	Tokens         *auth.JWTManager
	Authorizer     *auth.Authorizer
	Workflow       Workflow
	Monitor        *monitoring.Monitor
	CallbackSecret string
	Logger         *logrus.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	return &Server{
		store:          deps.Store,
		tokens:         deps.Tokens,
		authz:          deps.Authorizer,
		workflow:       deps.Workflow,
		monitor:        deps.Monitor,
		cfg:            cfg,
		callbackSecret: deps.CallbackSecret,
		logger:         deps.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, CodeNotFound, "method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if n := s.cfg.RateLimit.RequestsPerMinute; n > 0 {
			r.Use(httprate.LimitByIP(n, time.Minute))
		}

		r.Get("/health", s.handleHealth)
		r.Post("/webhooks/workflow", s.handleWorkflowCallback)

		r.Group(func(r chi.Router) {
			if n := s.cfg.RateLimit.LoginPerMinute; n > 0 {
				r.Use(httprate.LimitByIP(n, time.Minute))
			}
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.authorize)

			r.Get("/auth/me", s.handleMe)

			r.Get("/posts", s.handleListPosts)
			r.Get("/posts/export", s.handleExportPosts)
			r.Get("/posts/{id}", s.handleGetPost)
			r.Get("/posts/{id}/commenters", s.handlePostCommenters)
			r.Get("/posts/{id}/sentiment-summary", s.handlePostSentimentSummary)

			r.Get("/comments", s.handleListComments)
			r.Get("/comments/{id}", s.handleGetComment)

			r.Get("/sentiments", s.handleListSentiments)
			r.Get("/sentiments/trend", s.handleSentimentTrend)
			r.Get("/sentiments/{id}", s.handleGetSentiment)

			r.Get("/users", s.handleListUsers)
			r.Get("/users/{id}", s.handleGetUser)
			r.Get("/users/{id}/posts", s.handleUserPosts)

			r.Get("/pages", s.handleListPages)
			r.Get("/pages/{id}", s.handleGetPage)

			r.Get("/dashboard/stats", s.handleDashboardStats)

			r.Post("/scrape", s.handleScrape)
			r.Get("/scrape/jobs", s.handleListScrapeJobs)
			r.Get("/scrape/jobs/{id}", s.handleGetScrapeJob)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/access", s.handleGrant)
				r.Delete("/access/{userID}/{postID}", s.handleRevoke)
				r.Get("/access/users/{id}", s.handleGrantsForUser)
				r.Get("/access/posts/{id}", s.handleGrantsForPost)
				r.Post("/access/bulk/users", s.handleBulkGrantUsers)
				r.Post("/access/bulk/posts", s.handleBulkGrantPosts)

				r.Get("/auth-users", s.handleListAuthUsers)
				r.Post("/auth-users", s.handleCreateAuthUser)

				r.Post("/seed", s.handleSeed)
				r.Delete("/data", s.handleClearData)
			})
		})
	})

	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Infof("Starting API server on port %d", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{
		"message": "Sentiment Dashboard API",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeData(w, http.StatusOK, map[string]string{"status": monitoring.StatusHealthy})
		return
	}

	report := s.monitor.HealthStatus(r.Context())
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, APIResponse{Success: status == http.StatusOK, Data: report})
}
