package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/sheets"
)

// TransactionReader is the slice of the ledger the worker needs.
type TransactionReader interface {
	GetTransaction(ctx context.Context, user string, id int64) (core.Transaction, error)
}

// MirrorWorker keeps a LedgerMirror in step with ledger events. Events only
// carry ids, so every upsert reads the current row from the ledger.
type MirrorWorker struct {
	ledger      TransactionReader
	mirror      sheets.LedgerMirror
	concurrency int
}

func NewMirrorWorker(ledger TransactionReader, mirror sheets.LedgerMirror, concurrency int) *MirrorWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &MirrorWorker{ledger: ledger, mirror: mirror, concurrency: concurrency}
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"user_id", ev.UserID,
		"transactions", len(ev.TransactionIDs))

	switch ev.Kind {
	case amqp.TransactionSaved, amqp.CategoryDeleted:
		return w.each(ctx, ev.TransactionIDs, func(ctx context.Context, id int64) error {
			return w.sync(ctx, ev.UserID, id)
		})
	case amqp.TransactionDeleted:
		return w.each(ctx, ev.TransactionIDs, func(ctx context.Context, id int64) error {
			if err := w.mirror.Remove(ctx, id); err != nil {
				return fmt.Errorf("remove transaction %d from mirror: %w", id, err)
			}
			return nil
		})
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "event_id", ev.ID, "kind", ev.Kind)
		return nil
	}
}

// sync upserts the current state of one transaction, or removes it when it
// no longer exists.
func (w *MirrorWorker) sync(ctx context.Context, user string, id int64) error {
	tx, err := w.ledger.GetTransaction(ctx, user, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Transaction gone, removing mirror row", "transaction_id", id)
		return w.mirror.Remove(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", id, err)
	}
	if err := w.mirror.Upsert(ctx, sheets.RowFromTransaction(tx)); err != nil {
		return fmt.Errorf("mirror transaction %d: %w", id, err)
	}
	return nil
}

func (w *MirrorWorker) each(ctx context.Context, ids []int64, fn func(context.Context, int64) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		g.Go(func() error { return fn(gctx, id) })
	}
	return g.Wait()
}
