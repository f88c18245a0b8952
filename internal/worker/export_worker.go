// Package worker runs the asynchronous export pipeline: transaction events
// published by the API are consumed here, logged to the export trail, and
// the corresponding rows marked exported.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/storage"
)

type ExportWorker struct {
	storage *storage.SQLiteRepository
	logger  *slog.Logger
}

func NewExportWorker(storage *storage.SQLiteRepository, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{storage: storage, logger: logger}
}

// HandleTransactionEvent processes one queued event. A row that has already
// been deleted is acked and forgotten: the ledger is the source of truth and
// the event is stale.
func (w *ExportWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	tx, err := w.storage.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction gone before export, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	if tx.Exported {
		// Redelivery after a crash between mark and ack.
		return nil
	}

	w.logger.InfoContext(ctx, "Exporting transaction",
		"id", tx.ID,
		"account_id", tx.AccountID,
		"type", tx.Type,
		"amount_cents", tx.AmountCents,
		"occurred_on", tx.OccurredOn)

	if err := w.storage.MarkTransactionExported(ctx, tx.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return w.HandleTransactionEvent(ctx, msg)
	})
}
