package http

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"kopilka/internal/storage"
)

// handleExport streams the full transaction history as CSV (default) or
// JSON. Deactivated accounts' rows are included; that is the point of soft
// deletion.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		respondError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	txs, err := s.storage.ListTransactions(r.Context(), storage.TransactionFilter{})
	if err != nil {
		respondStorageError(w, r, s.logger, err)
		return
	}

	filename := "kopilka-export-" + time.Now().Format("2006-01-02")

	if format == "json" {
		if txs == nil {
			txs = []storage.Transaction{}
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.json"`)
		respondJSON(w, http.StatusOK, txs)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "account_id", "type", "amount_cents", "category", "description", "occurred_on", "exported"})
	for _, t := range txs {
		_ = cw.Write([]string{
			t.ID,
			t.AccountID,
			t.Type,
			strconv.FormatInt(t.AmountCents, 10),
			t.Category,
			t.Description,
			t.OccurredOn,
			strconv.FormatBool(t.Exported),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export write failed", "error", err)
	}
}
