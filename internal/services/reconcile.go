package services

import (
	"context"
	"fmt"
	"log/slog"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/storage"
)

// ReconcileResult describes a completed category deletion.
type ReconcileResult struct {
	CategoryID int64
	FallbackID int64
	Reassigned []int64 // ids of the caller's transactions moved to the fallback
	WasGlobal  bool
}

// Reconcile deletes a category visible to user in one storage transaction:
// resolve the fallback, refuse to delete it, move user's transactions onto it,
// then drop the record. Transactions of other users that referenced a global
// category are nulled by the foreign key and read as the fallback from then on.
func (l *Ledger) Reconcile(ctx context.Context, user string, categoryID int64) (ReconcileResult, error) {
	var res ReconcileResult
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		fb, err := l.fallback(ctx, q)
		if err != nil {
			return err
		}
		if categoryID == fb.ID {
			return core.ErrProtected
		}
		target, err := q.GetVisibleCategory(ctx, user, categoryID)
		if err != nil {
			return err
		}

		moved, err := q.ReassignCategory(ctx, user, target.ID, fb.ID)
		if err != nil {
			return err
		}
		if err := q.DeleteCategory(ctx, target.ID); err != nil {
			return err
		}

		res = ReconcileResult{
			CategoryID: target.ID,
			FallbackID: fb.ID,
			Reassigned: moved,
			WasGlobal:  target.IsGlobal(),
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	slog.InfoContext(ctx, "Category deleted",
		"category_id", res.CategoryID,
		"user_id", user,
		"reassigned", len(res.Reassigned),
		"global", res.WasGlobal)

	ev := amqp.NewLedgerEvent(amqp.CategoryDeleted, user, res.Reassigned...)
	ev.CategoryID = res.CategoryID
	l.publish(ctx, ev)

	return res, nil
}

// RepairOrphans rewrites every NULL category reference, across all users, to
// the fallback. Reads already present such rows as the fallback; this makes
// the stored state match.
func (l *Ledger) RepairOrphans(ctx context.Context) ([]storage.OrphanedTransaction, error) {
	var repaired []storage.OrphanedTransaction
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		fb, err := l.fallback(ctx, q)
		if err != nil {
			return err
		}
		repaired, err = q.RepairOrphans(ctx, fb.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repair orphans: %w", err)
	}

	byOwner := make(map[string][]int64)
	for _, o := range repaired {
		byOwner[o.Owner] = append(byOwner[o.Owner], o.ID)
	}
	for owner, ids := range byOwner {
		l.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionSaved, owner, ids...))
	}

	slog.InfoContext(ctx, "Orphaned transactions repaired", "count", len(repaired), "owners", len(byOwner))
	return repaired, nil
}
