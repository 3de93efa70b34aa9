package services

import (
	"context"
	"fmt"

	"caixinha/internal/core"
	"caixinha/internal/storage"
)

// Summarize computes user's overview for year/month. Zero values select the
// current calendar month. All reads share one storage transaction.
func (l *Ledger) Summarize(ctx context.Context, user string, year, month int) (core.Summary, error) {
	if err := requireOwner(user); err != nil {
		return core.Summary{}, err
	}
	if year <= 0 || month < 1 || month > 12 {
		now := l.now()
		year, month = now.Year(), int(now.Month())
	}

	s := core.Summary{Year: year, Month: month}
	err := l.readTx(ctx, func(q *storage.Queries, fb core.Category) error {
		monthTotals, err := q.MonthTotals(ctx, user, year, month)
		if err != nil {
			return err
		}
		allTime, err := q.AllTimeTotals(ctx, user)
		if err != nil {
			return err
		}
		byCategory, err := q.CategoryTotals(ctx, user, fb.ID, year, month)
		if err != nil {
			return err
		}

		s.Income = core.Money{Cents: monthTotals.Income}
		s.Expense = core.Money{Cents: monthTotals.Expense}
		s.TotalIncome = core.Money{Cents: allTime.Income}
		s.TotalExpense = core.Money{Cents: allTime.Expense}
		s.ByCategory = byCategory
		return nil
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize %s: %w", s.Period(), err)
	}
	return s, nil
}
