package storage

import (
	"context"
	"fmt"

	"caixinha/internal/core"
)

// Totals is an income/expense pair in cents.
type Totals struct {
	Income  int64
	Expense int64
}

const totalsSelect = `SELECT
    COALESCE(SUM(CASE WHEN t.type = 'IN'  THEN t.amount_cents END), 0),
    COALESCE(SUM(CASE WHEN t.type = 'OUT' THEN t.amount_cents END), 0)
  FROM transactions t
 WHERE ` + ownedTransaction

// MonthTotals sums owner's transactions dated within the calendar month.
func (q *Queries) MonthTotals(ctx context.Context, owner string, year, month int) (Totals, error) {
	from, to := core.MonthRange(year, month)
	var t Totals
	err := q.db.QueryRowContext(ctx,
		totalsSelect+` AND t.date >= ? AND t.date < ?`,
		owner, from, to).Scan(&t.Income, &t.Expense)
	if err != nil {
		return Totals{}, fmt.Errorf("month totals: %w", err)
	}
	return t, nil
}

// AllTimeTotals sums every transaction owner has.
func (q *Queries) AllTimeTotals(ctx context.Context, owner string) (Totals, error) {
	var t Totals
	if err := q.db.QueryRowContext(ctx, totalsSelect, owner).Scan(&t.Income, &t.Expense); err != nil {
		return Totals{}, fmt.Errorf("all time totals: %w", err)
	}
	return t, nil
}

// CategoryTotals groups the month by (category, type). NULL references are
// counted under the fallback.
func (q *Queries) CategoryTotals(ctx context.Context, owner string, fallbackID int64, year, month int) ([]core.CategoryTotal, error) {
	from, to := core.MonthRange(year, month)
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.name, t.type, SUM(t.amount_cents)
		   FROM transactions t
		   JOIN categories c ON c.id = COALESCE(t.category_id, ?)
		  WHERE `+ownedTransaction+` AND t.date >= ? AND t.date < ?
		  GROUP BY c.id, c.name, t.type
		  ORDER BY t.type, c.name, c.id`,
		fallbackID, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			ct     core.CategoryTotal
			txType string
			cents  int64
		)
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &txType, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Type = core.TxType(txType)
		ct.Total = core.Money{Cents: cents}
		out = append(out, ct)
	}
	return out, rows.Err()
}
