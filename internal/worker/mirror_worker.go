// Package worker applies transaction events to the spreadsheet mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Daler-web-dev/hisbbot/internal/amqp"
	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/sheets"
	"github.com/Daler-web-dev/hisbbot/internal/storage"
)

// TransactionSource loads what a mirror row needs.
type TransactionSource interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	FindUser(ctx context.Context, id string) (core.User, error)
}

// MirrorWorker copies recorded transactions to the mirror and clears deleted ones.
type MirrorWorker struct {
	source TransactionSource
	mirror sheets.TransactionMirror
}

func NewMirrorWorker(source TransactionSource, mirror sheets.TransactionMirror) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror}
}

// HandleEvent is an amqp.Handler. Returning an error requeues the event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event", "event", msg.Event, "id", msg.ID)

	switch msg.Event {
	case amqp.EventTransactionRecorded:
		return w.mirrorTransaction(ctx, msg.ID)
	case amqp.EventTransactionDeleted:
		if err := w.mirror.RemoveTransaction(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove from mirror: %w", err)
		}
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown event", "event", msg.Event, "id", msg.ID)
		return nil
	}
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, id string) error {
	tx, err := w.source.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// deleted before the event was processed, the delete event follows
		slog.InfoContext(ctx, "Transaction no longer exists, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	user, err := w.source.FindUser(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	row := sheets.MirrorRow{
		ID:          tx.ID,
		CreatedAt:   tx.CreatedAt,
		TelegramID:  user.ExternalID,
		Polarity:    tx.Polarity,
		Amount:      tx.Amount,
		Category:    tx.CategoryName,
		Description: tx.Description,
	}
	if err := w.mirror.AppendTransaction(ctx, row); err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored",
		"id", tx.ID,
		"amount", tx.Amount.String(),
		"category", tx.CategoryName)
	return nil
}
