// Package http wires kopilka's HTTP surface: the perimeter gate, the auth
// endpoints, the ledger API, and the server-rendered pages.
package http

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kopilka/internal/amqp"
	"kopilka/internal/auth"
	"kopilka/internal/metrics"
	"kopilka/internal/storage"
	appweb "kopilka/web"
)

// Options carries the server's collaborators. Events may be nil when the
// broker is not configured; export events are then skipped.
type Options struct {
	Auth    *auth.Service
	Storage *storage.SQLiteRepository
	Events  *amqp.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Server struct {
	http.Server
	auth      *auth.Service
	sessions  *auth.Sessions
	storage   *storage.SQLiteRepository
	events    *amqp.Client
	metrics   *metrics.Metrics
	logger    *slog.Logger
	templates *template.Template
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Server:   http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second},
		auth:     opts.Auth,
		sessions: opts.Auth.Sessions(),
		storage:  opts.Storage,
		events:   opts.Events,
		metrics:  opts.Metrics,
		logger:   logger,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	gate := NewGate(s.sessions, s.metrics, s.logger)

	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.withRequestLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.withSecurityHeaders)
	r.Use(gate.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	}

	r.Get("/", s.handleIndexPage)
	r.Get("/login", s.handleLoginPage)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Get("/check", s.handleAuthCheck)
			a.Post("/setup", s.handleAuthSetup)
			a.Post("/login", s.handleAuthLogin)
			a.Post("/logout", s.handleAuthLogout)
			a.Post("/change-password", s.handleAuthChangePassword)
		})

		api.Get("/settings", s.handleGetSettings)
		api.Put("/settings", s.handleUpdateSettings)

		api.Route("/accounts", func(a chi.Router) {
			a.Get("/", s.handleListAccounts)
			a.Post("/", s.handleCreateAccount)
			a.Get("/{id}", s.handleGetAccount)
			a.Put("/{id}", s.handleUpdateAccount)
			a.Delete("/{id}", s.handleDeleteAccount)
		})

		api.Route("/transactions", func(a chi.Router) {
			a.Get("/", s.handleListTransactions)
			a.Post("/", s.handleCreateTransaction)
			a.Get("/{id}", s.handleGetTransaction)
			a.Put("/{id}", s.handleUpdateTransaction)
			a.Delete("/{id}", s.handleDeleteTransaction)
		})

		api.Get("/export", s.handleExport)
	})

	return r
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.logger.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", w.Header().Get("X-Request-Id"))

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RequestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
		}
	})
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.storage.GetSettings(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "index.html")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "login.html")
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string) {
	if s.templates == nil {
		respondError(w, http.StatusInternalServerError, "templates unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, nil); err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed", "template", name, "error", err)
	}
}

// requireSession runs the authoritative session check for a protected
// handler. The gate has already screened token shape, but only a successful
// decrypt grants access.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := s.sessions.Read(r); !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	return true
}
