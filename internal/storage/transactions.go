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

// Reads join through COALESCE so a NULL reference is presented as the
// fallback category. The fallback id is the first argument of every read.
const transactionSelect = `SELECT t.id, t.owner_id, t.type, t.amount_cents, t.date, t.description,
       c.id, c.name, t.created_at
  FROM transactions t
  LEFT JOIN categories c ON c.id = COALESCE(t.category_id, ?)`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t            core.Transaction
		txType       string
		amountCents  int64
		date         string
		categoryID   sql.NullInt64
		categoryName sql.NullString
		createdAt    string
	)
	if err := row.Scan(&t.ID, &t.Owner, &txType, &amountCents, &date, &t.Description,
		&categoryID, &categoryName, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has malformed date %q: %w", t.ID, date, err)
	}
	t.Type = core.TxType(txType)
	t.Amount = core.Money{Cents: amountCents}
	t.Date = d
	t.CategoryID = categoryID.Int64
	t.CategoryName = categoryName.String
	t.CreatedAt = parseTimestamp(createdAt)
	return t, nil
}

type CreateTransactionParams struct {
	Owner       string
	Type        core.TxType
	Amount      core.Money
	Date        core.Date
	Description string
	CategoryID  int64
	CreatedAt   time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO transactions (owner_id, type, amount_cents, date, description, category_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		arg.Owner, string(arg.Type), arg.Amount.Cents, arg.Date.String(),
		arg.Description, arg.CategoryID, formatTimestamp(arg.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

type UpdateTransactionParams struct {
	ID          int64
	Owner       string
	Type        core.TxType
	Amount      core.Money
	Date        core.Date
	Description string
	CategoryID  int64
}

// UpdateTransaction rewrites every mutable column, category included.
func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions AS t
		    SET type = ?, amount_cents = ?, date = ?, description = ?, category_id = ?
		  WHERE t.id = ? AND `+ownedTransaction,
		string(arg.Type), arg.Amount.Cents, arg.Date.String(), arg.Description, arg.CategoryID,
		arg.ID, arg.Owner)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", arg.ID, err)
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

// GetOwnedTransaction returns the transaction with its category resolved.
// CategoryID is zero only if the reference points at a missing row.
func (q *Queries) GetOwnedTransaction(ctx context.Context, owner string, id, fallbackID int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		transactionSelect+` WHERE t.id = ? AND `+ownedTransaction,
		fallbackID, id, owner)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("select transaction %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) DeleteOwnedTransaction(ctx context.Context, owner string, id int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM transactions AS t WHERE t.id = ? AND `+ownedTransaction, id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
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

var transactionOrderFields = map[string]string{
	"date":       "t.date",
	"amount":     "t.amount_cents",
	"id":         "t.id",
	"created_at": "t.created_at",
}

// orderClause turns ["-date", "amount"] into an ORDER BY list. Unknown fields
// are skipped and t.id always ends the list so pages are stable.
func orderClause(fields []string) string {
	var (
		parts  []string
		seenID bool
	)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
			f = f[1:]
		}
		col, ok := transactionOrderFields[f]
		if !ok {
			continue
		}
		if f == "id" {
			if seenID {
				continue
			}
			seenID = true
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return "t.date DESC, t.id DESC"
	}
	if !seenID {
		parts = append(parts, "t.id DESC")
	}
	return strings.Join(parts, ", ")
}

// appendFilter writes the conjunctive WHERE terms of f after an owner
// predicate and returns the extended argument list.
func appendFilter(sb *strings.Builder, args []any, fallbackID int64, f core.TransactionFilter) []any {
	if f.HasMonth() {
		from, to := core.MonthRange(f.Year, f.Month)
		sb.WriteString(` AND t.date >= ? AND t.date < ?`)
		args = append(args, from, to)
	}
	if f.Type != "" {
		sb.WriteString(` AND t.type = ?`)
		args = append(args, string(f.Type))
	}
	if f.CategoryID > 0 {
		sb.WriteString(` AND COALESCE(t.category_id, ?) = ?`)
		args = append(args, fallbackID, f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		sb.WriteString(` AND t.description LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(s))
	}
	return args
}

// ListTransactions applies the filter conjunctively. A zero Limit means no
// limit.
func (q *Queries) ListTransactions(ctx context.Context, owner string, fallbackID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	var (
		sb   strings.Builder
		args = []any{fallbackID, owner}
	)
	sb.WriteString(transactionSelect + ` WHERE ` + ownedTransaction)
	args = appendFilter(&sb, args, fallbackID, f)
	sb.WriteString(" ORDER BY " + orderClause(f.Ordering))
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, f.Limit, max(f.Offset, 0))
	} else if f.Offset > 0 {
		sb.WriteString(` LIMIT -1 OFFSET ?`)
		args = append(args, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions counts owner's transactions matching the filter, ignoring
// ordering and paging.
func (q *Queries) CountTransactions(ctx context.Context, owner string, fallbackID int64, f core.TransactionFilter) (int64, error) {
	var (
		sb   strings.Builder
		args = []any{owner}
	)
	sb.WriteString(`SELECT COUNT(*) FROM transactions t WHERE ` + ownedTransaction)
	args = appendFilter(&sb, args, fallbackID, f)
	var n int64
	if err := q.db.QueryRowContext(ctx, sb.String(), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ReassignCategory moves owner's transactions from one category to another
// and returns the ids it touched.
func (q *Queries) ReassignCategory(ctx context.Context, owner string, fromID, toID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`UPDATE transactions AS t SET category_id = ?
		  WHERE t.category_id = ? AND `+ownedTransaction+`
		  RETURNING id`,
		toID, fromID, owner)
	if err != nil {
		return nil, fmt.Errorf("reassign category %d: %w", fromID, err)
	}
	return collectIDs(rows)
}

// OrphanedTransaction identifies a row whose category reference is NULL.
type OrphanedTransaction struct {
	ID    int64
	Owner string
}

// RepairOrphans points every NULL reference, for every owner, at the fallback.
func (q *Queries) RepairOrphans(ctx context.Context, fallbackID int64) ([]OrphanedTransaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`UPDATE transactions SET category_id = ?
		  WHERE category_id IS NULL
		  RETURNING id, owner_id`,
		fallbackID)
	if err != nil {
		return nil, fmt.Errorf("repair orphaned transactions: %w", err)
	}
	defer rows.Close()

	var out []OrphanedTransaction
	for rows.Next() {
		var o OrphanedTransaction
		if err := rows.Scan(&o.ID, &o.Owner); err != nil {
			return nil, fmt.Errorf("scan repaired transaction: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
