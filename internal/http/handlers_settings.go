package http

import (
	"net/http"

	"kopilka/internal/storage"
)

type settingsRequest struct {
	Theme              string `json:"theme"`
	BaseCurrency       string `json:"baseCurrency"`
	MandatoryPercent   int    `json:"mandatoryPercent"`
	VariablePercent    int    `json:"variablePercent"`
	SavingsPercent     int    `json:"savingsPercent"`
	InvestmentsPercent int    `json:"investmentsPercent"`
}

// handleGetSettings returns the tunable settings. The credential hash never
// leaves the server; its struct field is excluded from JSON.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	settings, err := s.storage.GetSettings(r.Context())
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		respondError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if sum := req.MandatoryPercent + req.VariablePercent + req.SavingsPercent + req.InvestmentsPercent; sum != 100 {
		respondError(w, http.StatusBadRequest, "budget percentages must sum to 100")
		return
	}

	err := s.storage.UpdateSettings(r.Context(), storage.Settings{
		Theme:              req.Theme,
		BaseCurrency:       req.BaseCurrency,
		MandatoryPercent:   req.MandatoryPercent,
		VariablePercent:    req.VariablePercent,
		SavingsPercent:     req.SavingsPercent,
		InvestmentsPercent: req.InvestmentsPercent,
	})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}

	settings, err := s.storage.GetSettings(r.Context())
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}
