package http

import (
	"log/slog"
	"net/http"
	"strings"

	"kopilka/internal/auth"
	"kopilka/internal/metrics"
)

// staticPrefixes bypass the gate entirely: assets and operational endpoints
// carry no user data.
var staticPrefixes = []string{
	"/static/",
	"/favicon.ico",
	"/healthz",
	"/readyz",
	"/metrics",
}

// publicPaths are reachable without a session: the login page and the auth
// endpoints needed to obtain one.
var publicPaths = []string{
	"/login",
	"/api/auth/login",
	"/api/auth/check",
	"/api/auth/setup",
}

// Gate is the perimeter middleware. It screens requests to protected paths
// by token SHAPE only and never holds the encryption key: a request that
// passes the gate still has to survive the authoritative decrypt inside the
// handler. Its job is routing UX (bounce obviously unauthenticated visitors
// to /login) and shedding garbage cookies early.
type Gate struct {
	sessions *auth.Sessions
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGate(sessions *auth.Sessions, m *metrics.Metrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{sessions: sessions, metrics: m, logger: logger}
}

func isStaticPath(path string) bool {
	for _, p := range staticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware applies the gate's three-way path classification. Protected
// requests without a cookie redirect to /login; protected requests with a
// structurally broken token get the cookie cleared first so the browser
// stops resending it.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if isStaticPath(path) || isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(auth.CookieName)
		if err != nil || cookie.Value == "" {
			g.redirectToLogin(w, r, metrics.RedirectMissingToken)
			return
		}
		if !auth.ValidTokenFormat(cookie.Value) {
			g.sessions.Clear(w)
			g.redirectToLogin(w, r, metrics.RedirectMalformedToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	if g.metrics != nil {
		g.metrics.GateRedirects.WithLabelValues(reason).Inc()
	}
	g.logger.DebugContext(r.Context(), "Gate redirect", "path", r.URL.Path, "reason", reason)
	http.Redirect(w, r, "/login", http.StatusFound)
}
