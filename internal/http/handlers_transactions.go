package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kopilka/internal/storage"
)

type transactionRequest struct {
	AccountID   string `json:"accountId"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amountCents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	OccurredOn  string `json:"occurredOn"`
}

func (req transactionRequest) validate() (string, bool) {
	if req.AccountID == "" {
		return "accountId is required", false
	}
	if req.Type != storage.TransactionIncome && req.Type != storage.TransactionExpense {
		return "type must be income or expense", false
	}
	if req.AmountCents <= 0 {
		return "amountCents must be positive", false
	}
	if _, err := time.Parse("2006-01-02", req.OccurredOn); err != nil {
		return "occurredOn must be YYYY-MM-DD", false
	}
	return "", true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var filter storage.TransactionFilter
	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			respondError(w, http.StatusBadRequest, "year must be a number")
			return
		}
		filter.Year = year
	}
	if m := q.Get("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			respondError(w, http.StatusBadRequest, "month must be 1-12")
			return
		}
		filter.Month = month
	}
	if (filter.Year == 0) != (filter.Month == 0) {
		respondError(w, http.StatusBadRequest, "year and month must be given together")
		return
	}
	filter.AccountID = q.Get("accountId")

	txs, err := s.storage.ListTransactions(r.Context(), filter)
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	if txs == nil {
		txs = []storage.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

// handleCreateTransaction records the row, adjusts the account balance, and
// announces the new row to the export queue. Publishing is best effort: a
// broker outage must not block the ledger.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if reason, ok := req.validate(); !ok {
		respondError(w, http.StatusBadRequest, reason)
		return
	}

	tx, err := s.storage.CreateTransaction(r.Context(), storage.Transaction{
		AccountID:   req.AccountID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Category:    req.Category,
		Description: req.Description,
		OccurredOn:  req.OccurredOn,
	})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishTransactionEvent(r.Context(), tx.ID); err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to publish transaction event",
				"id", tx.ID, "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	tx, err := s.storage.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if reason, ok := req.validate(); !ok {
		respondError(w, http.StatusBadRequest, reason)
		return
	}

	tx, err := s.storage.UpdateTransaction(r.Context(), storage.Transaction{
		ID:          chi.URLParam(r, "id"),
		AccountID:   req.AccountID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Category:    req.Category,
		Description: req.Description,
		OccurredOn:  req.OccurredOn,
	})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	if err := s.storage.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}
	respondSuccess(w)
}
