package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"caixinha/internal/core"
)

const categoryColumns = "c.id, c.name, c.owner_id, c.created_at"

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c         core.Category
		owner     sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &owner, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Owner = owner.String
	c.CreatedAt = parseTimestamp(createdAt)
	return c, nil
}

type CreateCategoryParams struct {
	Name      string
	Owner     string // empty creates a global category
	CreatedAt time.Time
}

// CreateCategory inserts a category. A clash on the normalized name in the
// same scope yields core.ErrDuplicateName.
func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (core.Category, error) {
	name := strings.TrimSpace(arg.Name)
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, name_key, owner_id, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id, name, owner_id, created_at`,
		name, core.NormalizeName(name), nullableOwner(arg.Owner), formatTimestamp(arg.CreatedAt))
	c, err := scanCategory(row)
	if isUniqueViolation(err) {
		return core.Category{}, core.ErrDuplicateName
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// EnsureFallback inserts the global fallback unless it already exists and
// returns it. Concurrent callers, even in other processes, converge on the
// same row through the global partial unique index.
func (q *Queries) EnsureFallback(ctx context.Context, now time.Time) (core.Category, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (name, name_key, owner_id, created_at)
		 VALUES (?, ?, NULL, ?)`,
		core.FallbackCategoryName, core.NormalizeName(core.FallbackCategoryName), formatTimestamp(now))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert fallback category: %w", err)
	}
	return q.GetFallback(ctx)
}

func (q *Queries) GetFallback(ctx context.Context) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c
		 WHERE c.owner_id IS NULL AND c.name_key = ?`,
		core.NormalizeName(core.FallbackCategoryName))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select fallback category: %w", err)
	}
	return c, nil
}

// GetVisibleCategory returns the category only when user may see it.
func (q *Queries) GetVisibleCategory(ctx context.Context, user string, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c
		 WHERE c.id = ? AND `+visibleCategory,
		id, user)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category %d: %w", id, err)
	}
	return c, nil
}

// CategoryNameTaken reports whether name is already used by a global category
// or by one of owner's categories, ignoring excludeID. An empty owner checks
// the global scope only.
func (q *Queries) CategoryNameTaken(ctx context.Context, owner, name string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM categories c
		   WHERE c.name_key = ? AND c.id <> ? AND `+visibleCategory+`
		 )`,
		core.NormalizeName(name), excludeID, nullableOwner(owner)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return exists, nil
}

var categoryOrderings = map[string]string{
	"name":        "c.name ASC, c.id ASC",
	"-name":       "c.name DESC, c.id DESC",
	"created_at":  "c.created_at ASC, c.id ASC",
	"-created_at": "c.created_at DESC, c.id DESC",
}

// ListVisibleCategories returns global categories plus those owned by user.
// Unknown orderings fall back to name ascending.
func (q *Queries) ListVisibleCategories(ctx context.Context, user string, opts core.CategoryListOptions) ([]core.Category, error) {
	var (
		sb   strings.Builder
		args = []any{user}
	)
	sb.WriteString(`SELECT ` + categoryColumns + ` FROM categories c WHERE ` + visibleCategory)
	if s := strings.TrimSpace(opts.Search); s != "" {
		sb.WriteString(` AND c.name LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(s))
	}
	order, ok := categoryOrderings[strings.TrimSpace(opts.Ordering)]
	if !ok {
		order = categoryOrderings["name"]
	}
	sb.WriteString(" ORDER BY " + order)

	return q.queryCategories(ctx, sb.String(), args...)
}

// ListAllCategories is the operator view: every category of every owner.
func (q *Queries) ListAllCategories(ctx context.Context) ([]core.Category, error) {
	return q.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories c
		 ORDER BY c.owner_id IS NOT NULL, c.owner_id, c.name, c.id`)
}

func (q *Queries) queryCategories(ctx context.Context, query string, args ...any) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) RenameCategory(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	_, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, name_key = ? WHERE id = ?`,
		name, core.NormalizeName(name), id)
	if isUniqueViolation(err) {
		return core.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("rename category %d: %w", id, err)
	}
	return nil
}

// DeleteCategory removes the row. Remaining references from any owner are
// nulled by the foreign key.
func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
