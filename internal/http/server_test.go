package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopilka/internal/auth"
	"kopilka/internal/metrics"
	"kopilka/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kopilka.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	codec, err := auth.NewTokenCodec("test-secret")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(repo, auth.NewSessions(codec, false), logger)

	return NewServer(":0", Options{
		Auth:    svc,
		Storage: repo,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Logger:  logger,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

// setupAndLogin walks the first-run flow and returns the session cookie.
func setupAndLogin(t *testing.T, s *Server, password string) *http.Cookie {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/auth/setup",
		map[string]string{"password": password, "confirmPassword": password})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": password})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestFirstRunFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/auth/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status auth.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Authenticated)
	assert.True(t, status.NeedsSetup)

	// Setup does not log in by itself.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/setup",
		map[string]string{"password": "pass1234", "confirmPassword": "pass1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = doJSON(t, s, http.MethodGet, "/api/auth/check", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Authenticated)
	assert.False(t, status.NeedsSetup)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "pass1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, auth.CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)

	rec = doJSON(t, s, http.MethodGet, "/api/auth/check", nil, cookie)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Authenticated)
}

func TestSetupValidationAndConflict(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing password", map[string]string{"confirmPassword": "abcd"}, http.StatusBadRequest},
		{"too short", map[string]string{"password": "abc", "confirmPassword": "abc"}, http.StatusBadRequest},
		{"mismatch", map[string]string{"password": "abcd", "confirmPassword": "abce"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/auth/setup", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	// Rejected attempts must not have persisted anything.
	rec := doJSON(t, s, http.MethodGet, "/api/auth/check", nil)
	var status auth.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.NeedsSetup)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/setup",
		map[string]string{"password": "abcd", "confirmPassword": "abcd"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/setup",
		map[string]string{"password": "efgh", "confirmPassword": "efgh"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "abcd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "login before setup")

	setupAndLogin(t, s, "abcd")

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "failed login must not set a cookie")

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]interface{}{"password": 12345})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-string password")
}

func TestChangePasswordFlow(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "original")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/change-password",
		map[string]string{"currentPassword": "original", "newPassword": "replacement"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no session")

	rec = doJSON(t, s, http.MethodPost, "/api/auth/change-password",
		map[string]string{"currentPassword": "wrong", "newPassword": "replacement"}, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong current password")

	rec = doJSON(t, s, http.MethodPost, "/api/auth/change-password",
		map[string]string{"currentPassword": "original", "newPassword": "abc"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "new password too short")

	rec = doJSON(t, s, http.MethodPost, "/api/auth/change-password",
		map[string]string{"currentPassword": "original", "newPassword": "replacement"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "original"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "replacement"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Sessions issued before the change stay valid until expiry.
	rec = doJSON(t, s, http.MethodGet, "/api/settings", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "abcd")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// The browser now sends no cookie; protected pages bounce to /login.
	rec = doJSON(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// Logout without a session is still fine.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// A token with a plausible shape passes the perimeter but must fail the
// authoritative check inside the handler.
func TestForgedTokenRejectedByHandlers(t *testing.T) {
	s := newTestServer(t)
	setupAndLogin(t, s, "abcd")

	forged := &http.Cookie{
		Name:  auth.CookieName,
		Value: strings.Repeat("a", 32) + ":" + strings.Repeat("b", 32),
	}
	require.True(t, auth.ValidTokenFormat(forged.Value))

	rec := doJSON(t, s, http.MethodGet, "/api/settings", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/accounts", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountAndTransactionAPI(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "abcd")

	rec := doJSON(t, s, http.MethodPost, "/api/accounts",
		map[string]string{"name": "Card", "type": "checking"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var account storage.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.NotEmpty(t, account.ID)

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   account.ID,
		"type":        "income",
		"amountCents": 10000,
		"occurredOn":  "2026-08-01",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   account.ID,
		"type":        "expense",
		"amountCents": 2500,
		"occurredOn":  "2026-08-02",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var tx storage.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+account.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, int64(7500), account.BalanceCents)

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?year=2026&month=8", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []storage.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 2)

	rec = doJSON(t, s, http.MethodPut, "/api/transactions/"+tx.ID, map[string]any{
		"accountId":   account.ID,
		"type":        "expense",
		"amountCents": 1500,
		"occurredOn":  "2026-08-02",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+account.ID, nil, cookie)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, int64(8500), account.BalanceCents)

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+tx.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+account.ID, nil, cookie)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, int64(10000), account.BalanceCents)

	rec = doJSON(t, s, http.MethodDelete, "/api/accounts/"+account.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/accounts", nil, cookie)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTransactionValidation(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "abcd")

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   "missing",
		"type":        "expense",
		"amountCents": 100,
		"occurredOn":  "2026-08-01",
	}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown account")

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   "x",
		"type":        "transfer",
		"amountCents": 100,
		"occurredOn":  "2026-08-01",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad type")

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   "x",
		"type":        "expense",
		"amountCents": -5,
		"occurredOn":  "2026-08-01",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "negative amount")

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?year=2026", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "year without month")
}

func TestSettingsNeverExposeCredential(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "abcd")

	rec := doJSON(t, s, http.MethodGet, "/api/settings", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = doJSON(t, s, http.MethodPut, "/api/settings", map[string]any{
		"theme":              "dark",
		"baseCurrency":       "RUB",
		"mandatoryPercent":   50,
		"variablePercent":    20,
		"savingsPercent":     20,
		"investmentsPercent": 10,
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	// The credential must have survived the settings write.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": "abcd"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	cookie := setupAndLogin(t, s, "abcd")

	rec := doJSON(t, s, http.MethodPost, "/api/accounts", map[string]string{"name": "Cash"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var account storage.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"accountId":   account.ID,
		"type":        "expense",
		"amountCents": 199,
		"category":    "food",
		"occurredOn":  "2026-08-05",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/export", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "199")

	rec = doJSON(t, s, http.MethodGet, "/api/export?format=json", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []storage.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/export?format=xml", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
