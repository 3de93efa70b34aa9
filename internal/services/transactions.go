package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/storage"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 50
)

// resolveCategory binds a write's category reference to a stored id. Absent
// and null references bind to the fallback; an explicit id must be visible to
// user. current is the reference already stored, used when ref is absent.
func resolveCategory(ctx context.Context, q *storage.Queries, user string, ref core.CategoryRef, current, fallbackID int64) (int64, error) {
	id, explicit := ref.ID()
	if !explicit {
		if ref.IsNull() || current == 0 {
			return fallbackID, nil
		}
		// An absent reference keeps the stored one, which reads already
		// resolved to the fallback when it pointed at nothing.
		return current, nil
	}
	if _, err := q.GetVisibleCategory(ctx, user, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, core.FieldError("category", core.ErrUnknownCategory)
		}
		return 0, err
	}
	return id, nil
}

// CreateTransaction validates and stores a transaction for user.
func (l *Ledger) CreateTransaction(ctx context.Context, user string, in core.TransactionInput) (core.Transaction, error) {
	if err := requireOwner(user); err != nil {
		return core.Transaction{}, err
	}
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		fb, err := l.fallback(ctx, q)
		if err != nil {
			return err
		}
		categoryID, err := resolveCategory(ctx, q, user, in.Category, 0, fb.ID)
		if err != nil {
			return err
		}
		id, err := q.CreateTransaction(ctx, storage.CreateTransactionParams{
			Owner:       user,
			Type:        in.Type,
			Amount:      in.Amount,
			Date:        in.Date,
			Description: in.Description,
			CategoryID:  categoryID,
			CreatedAt:   l.now(),
		})
		if err != nil {
			return err
		}
		created, err = q.GetOwnedTransaction(ctx, user, id, fb.ID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID,
		"user_id", user,
		"type", created.Type,
		"amount_cents", created.Amount.Cents,
		"category_id", created.CategoryID)

	l.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionSaved, user, created.ID))
	return created, nil
}

// UpdateTransaction applies patch to one of user's transactions. A full
// replacement is a patch with every field set.
func (l *Ledger) UpdateTransaction(ctx context.Context, user string, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	if err := requireOwner(user); err != nil {
		return core.Transaction{}, err
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		fb, err := l.fallback(ctx, q)
		if err != nil {
			return err
		}
		tx, err := q.GetOwnedTransaction(ctx, user, id, fb.ID)
		if err != nil {
			return err
		}
		categoryID, err := resolveCategory(ctx, q, user, patch.Category, tx.CategoryID, fb.ID)
		if err != nil {
			return err
		}
		patch.Apply(&tx)

		err = q.UpdateTransaction(ctx, storage.UpdateTransactionParams{
			ID:          tx.ID,
			Owner:       user,
			Type:        tx.Type,
			Amount:      tx.Amount,
			Date:        tx.Date,
			Description: tx.Description,
			CategoryID:  categoryID,
		})
		if err != nil {
			return err
		}
		updated, err = q.GetOwnedTransaction(ctx, user, id, fb.ID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", updated.ID,
		"user_id", user,
		"category_id", updated.CategoryID)

	l.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionSaved, user, updated.ID))
	return updated, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, user string, id int64) (core.Transaction, error) {
	if err := requireOwner(user); err != nil {
		return core.Transaction{}, err
	}
	var tx core.Transaction
	err := l.readTx(ctx, func(q *storage.Queries, fb core.Category) error {
		var err error
		tx, err = q.GetOwnedTransaction(ctx, user, id, fb.ID)
		return err
	})
	return tx, err
}

func (l *Ledger) DeleteTransaction(ctx context.Context, user string, id int64) error {
	if err := requireOwner(user); err != nil {
		return err
	}
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		return q.DeleteOwnedTransaction(ctx, user, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "user_id", user)
	l.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, user, id))
	return nil
}

// TransactionPage is one page of a listing plus the unpaged match count.
type TransactionPage struct {
	Count   int64
	Results []core.Transaction
}

// ListTransactions returns user's transactions matching filter.
func (l *Ledger) ListTransactions(ctx context.Context, user string, filter core.TransactionFilter) (TransactionPage, error) {
	if err := requireOwner(user); err != nil {
		return TransactionPage{}, err
	}
	var page TransactionPage
	err := l.readTx(ctx, func(q *storage.Queries, fb core.Category) error {
		var err error
		if page.Count, err = q.CountTransactions(ctx, user, fb.ID, filter); err != nil {
			return err
		}
		page.Results, err = q.ListTransactions(ctx, user, fb.ID, filter)
		return err
	})
	return page, err
}

// ClampRecentLimit bounds a requested recent-listing size to 1..MaxRecentLimit.
func ClampRecentLimit(limit int) int {
	return max(1, min(limit, MaxRecentLimit))
}

// RecentTransactions returns the newest transactions under filter, newest
// first. limit is clamped with ClampRecentLimit.
func (l *Ledger) RecentTransactions(ctx context.Context, user string, filter core.TransactionFilter, limit int) ([]core.Transaction, error) {
	limit = ClampRecentLimit(limit)
	filter.Ordering = []string{"-date", "-id"}
	filter.Limit = limit
	filter.Offset = 0

	page, err := l.ListTransactions(ctx, user, filter)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
