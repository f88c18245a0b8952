package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kopilka/internal/storage"
)

type accountRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

var accountTypes = map[string]bool{
	"checking":   true,
	"savings":    true,
	"investment": true,
	"cash":       true,
}

func (req accountRequest) validate() (string, bool) {
	if req.Name == "" {
		return "name is required", false
	}
	if req.Type != "" && !accountTypes[req.Type] {
		return "unknown account type", false
	}
	return "", true
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	accounts, err := s.storage.ListAccounts(r.Context())
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	if accounts == nil {
		accounts = []storage.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if reason, ok := req.validate(); !ok {
		respondError(w, http.StatusBadRequest, reason)
		return
	}

	account, err := s.storage.CreateAccount(r.Context(), storage.Account{
		Name:     req.Name,
		Type:     req.Type,
		Currency: req.Currency,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	account, err := s.storage.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if reason, ok := req.validate(); !ok {
		respondError(w, http.StatusBadRequest, reason)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.storage.UpdateAccount(r.Context(), storage.Account{
		ID:       id,
		Name:     req.Name,
		Type:     req.Type,
		Currency: req.Currency,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}

	account, err := s.storage.GetAccount(r.Context(), id)
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// handleDeleteAccount soft deletes: the account disappears from listings but
// its transaction history stays exportable.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	if err := s.storage.DeactivateAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondSuccess(w)
}
