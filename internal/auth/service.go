package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Subject is the identity written into every session. The deployment is
// single-user, so the value carries no information, but it keeps the token
// format ready for real identities.
const Subject = "user"

// MinPasswordLength is deliberately low: the tool guards a personal local
// instance, not a shared service.
const MinPasswordLength = 4

// CredentialStore is the slice of the settings record the auth core needs.
// An empty hash means first-run setup has not completed.
type CredentialStore interface {
	GetCredential(ctx context.Context) (string, error)
	SetCredential(ctx context.Context, hash string) error
}

var (
	// ErrInvalidCredentials covers both a wrong login password and a wrong
	// current password on change. The message stays generic: there is only
	// one account, so there is nothing else to reveal.
	ErrInvalidCredentials = errors.New("invalid password")

	// ErrAlreadyConfigured rejects setup once a credential exists.
	ErrAlreadyConfigured = errors.New("password already configured, use login")

	// ErrNotConfigured rejects login before first-run setup.
	ErrNotConfigured = errors.New("password not configured, run setup first")
)

// ValidationError marks user-input failures that map to a 400 response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErr(reason string) error { return &ValidationError{Reason: reason} }

// Status is the check endpoint's report.
type Status struct {
	Authenticated bool `json:"authenticated"`
	NeedsSetup    bool `json:"needsSetup"`
}

// Service implements the authoritative auth operations over the single
// credential record.
type Service struct {
	store    CredentialStore
	sessions *Sessions
	logger   *slog.Logger
}

func NewService(store CredentialStore, sessions *Sessions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sessions: sessions, logger: logger}
}

// Sessions exposes the lifecycle manager so protected handlers outside this
// package can run their own authoritative Read.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Status reports authentication and setup state. It never fails: an internal
// fault degrades to the safe default (not authenticated, setup required).
func (s *Service) Status(ctx context.Context, r *http.Request) Status {
	hash, err := s.store.GetCredential(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Credential lookup failed during status check", "error", err)
		return Status{Authenticated: false, NeedsSetup: true}
	}
	_, authenticated := s.sessions.Read(r)
	return Status{
		Authenticated: authenticated,
		NeedsSetup:    hash == "",
	}
}

// Setup creates the credential on a fresh install. It validates the password
// pair, re-checks that no credential exists immediately before writing, and
// persists the hash in one write. It does not issue a session; login is a
// separate explicit step.
func (s *Service) Setup(ctx context.Context, password, confirm string) error {
	if password == "" {
		return validationErr("password is required")
	}
	if len(password) < MinPasswordLength {
		return validationErr(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if password != confirm {
		return validationErr("passwords do not match")
	}

	existing, err := s.store.GetCredential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if existing != "" {
		return ErrAlreadyConfigured
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetCredential(ctx, hash); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.logger.InfoContext(ctx, "Initial credential configured")
	return nil
}

// Login verifies the password against the stored credential and, on success,
// issues a session cookie on w.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, password string) error {
	if password == "" {
		return validationErr("password is required")
	}

	hash, err := s.store.GetCredential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if hash == "" {
		return ErrNotConfigured
	}

	if !VerifyPassword(password, hash) {
		return ErrInvalidCredentials
	}

	if err := s.sessions.Issue(w, Subject); err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	s.logger.InfoContext(ctx, "Login succeeded", "subject", Subject)
	return nil
}

// Logout clears the session cookie. It cannot fail.
func (s *Service) Logout(w http.ResponseWriter) {
	s.sessions.Clear(w)
}

// ChangePassword verifies the current password and overwrites the stored
// hash with one derived from the new password. Sessions issued before the
// change remain valid until their own expiry; revoking them would require
// server-side token state this design intentionally avoids.
func (s *Service) ChangePassword(ctx context.Context, r *http.Request, current, next string) error {
	if _, ok := s.sessions.Read(r); !ok {
		return ErrInvalidCredentials
	}
	if current == "" || next == "" {
		return validationErr("current and new passwords are required")
	}
	if len(next) < MinPasswordLength {
		return validationErr(fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.store.GetCredential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if hash == "" {
		return ErrNotConfigured
	}

	if !VerifyPassword(current, hash) {
		return ErrInvalidCredentials
	}

	newHash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetCredential(ctx, newHash); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.logger.InfoContext(ctx, "Password changed")
	return nil
}
