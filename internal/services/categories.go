package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"caixinha/internal/core"
	"caixinha/internal/storage"
)

// CreateCategory adds a category owned by user.
func (l *Ledger) CreateCategory(ctx context.Context, user, name string) (core.Category, error) {
	if err := requireOwner(user); err != nil {
		return core.Category{}, err
	}
	return l.createCategory(ctx, user, name)
}

// CreateGlobalCategory adds a category visible to every user. Operator only.
func (l *Ledger) CreateGlobalCategory(ctx context.Context, name string) (core.Category, error) {
	return l.createCategory(ctx, "", name)
}

func (l *Ledger) createCategory(ctx context.Context, owner, name string) (core.Category, error) {
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}

	var created core.Category
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		taken, err := q.CategoryNameTaken(ctx, owner, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return core.FieldError("name", core.ErrDuplicateName)
		}
		created, err = q.CreateCategory(ctx, storage.CreateCategoryParams{
			Name:      name,
			Owner:     owner,
			CreatedAt: l.now(),
		})
		if errors.Is(err, core.ErrDuplicateName) {
			return core.FieldError("name", err)
		}
		return err
	})
	if err != nil {
		return core.Category{}, err
	}

	slog.InfoContext(ctx, "Category created",
		"category_id", created.ID, "user_id", owner, "global", created.IsGlobal())
	return created, nil
}

// ListCategories returns the categories visible to user.
func (l *Ledger) ListCategories(ctx context.Context, user string, opts core.CategoryListOptions) ([]core.Category, error) {
	if err := requireOwner(user); err != nil {
		return nil, err
	}
	var out []core.Category
	err := l.store.InReadTx(ctx, func(q *storage.Queries) error {
		var err error
		out, err = q.ListVisibleCategories(ctx, user, opts)
		return err
	})
	return out, err
}

// ListAllCategories is the operator listing across every owner.
func (l *Ledger) ListAllCategories(ctx context.Context) ([]core.Category, error) {
	return l.store.Queries().ListAllCategories(ctx)
}

func (l *Ledger) GetCategory(ctx context.Context, user string, id int64) (core.Category, error) {
	if err := requireOwner(user); err != nil {
		return core.Category{}, err
	}
	var c core.Category
	err := l.store.InReadTx(ctx, func(q *storage.Queries) error {
		var err error
		c, err = q.GetVisibleCategory(ctx, user, id)
		return err
	})
	return c, err
}

// RenameCategory renames one of user's own categories. Global categories are
// reported as not found since the caller does not own them; the fallback is
// protected.
func (l *Ledger) RenameCategory(ctx context.Context, user string, id int64, name string) (core.Category, error) {
	if err := requireOwner(user); err != nil {
		return core.Category{}, err
	}
	if err := core.ValidateCategoryName(name); err != nil {
		return core.Category{}, err
	}

	var renamed core.Category
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetVisibleCategory(ctx, user, id)
		if err != nil {
			return err
		}
		if c.IsFallback() {
			return core.ErrProtected
		}
		if !c.OwnedBy(user) {
			return core.ErrNotFound
		}
		taken, err := q.CategoryNameTaken(ctx, user, name, id)
		if err != nil {
			return err
		}
		if taken {
			return core.FieldError("name", core.ErrDuplicateName)
		}
		if err := q.RenameCategory(ctx, id, name); err != nil {
			if errors.Is(err, core.ErrDuplicateName) {
				return core.FieldError("name", err)
			}
			return err
		}
		c.Name = strings.TrimSpace(name)
		renamed = c
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return renamed, nil
}

// DeleteCategory removes a visible category after moving the caller's
// transactions to the fallback. See Reconcile.
func (l *Ledger) DeleteCategory(ctx context.Context, user string, id int64) (ReconcileResult, error) {
	if err := requireOwner(user); err != nil {
		return ReconcileResult{}, err
	}
	res, err := l.Reconcile(ctx, user, id)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("delete category %d: %w", id, err)
	}
	return res, nil
}
