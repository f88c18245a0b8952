package http

import (
	"net/http"

	"kopilka/internal/metrics"
)

type setupRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleAuthCheck reports session and setup state. It is public and never
// fails; the login page polls it to pick setup or login mode.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.auth.Status(r.Context(), r))
}

func (s *Server) handleAuthSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.Setup(r.Context(), req.Password, req.ConfirmPassword); err != nil {
		respondServiceError(w, r, s.logger, err)
		return
	}
	respondSuccess(w)
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.Login(r.Context(), w, req.Password); err != nil {
		if s.metrics != nil {
			s.metrics.LoginsTotal.WithLabelValues(metrics.LoginFailure).Inc()
		}
		respondServiceError(w, r, s.logger, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(metrics.LoginSuccess).Inc()
		s.metrics.SessionsIssued.Inc()
	}
	respondSuccess(w)
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(w)
	respondSuccess(w)
}

func (s *Server) handleAuthChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.ChangePassword(r.Context(), r, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(w, r, s.logger, err)
		return
	}
	respondSuccess(w)
}
