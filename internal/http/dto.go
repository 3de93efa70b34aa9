package http

import (
	"time"

	"caixinha/internal/core"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type categoryJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type transactionJSON struct {
	ID           int64       `json:"id"`
	Type         core.TxType `json:"type"`
	Amount       core.Money  `json:"amount"`
	Date         core.Date   `json:"date"`
	Description  string      `json:"description"`
	Category     int64       `json:"category"`
	CategoryName string      `json:"category_name"`
	CreatedAt    string      `json:"created_at"`
}

type transactionPageJSON struct {
	Count   int64             `json:"count"`
	Results []transactionJSON `json:"results"`
}

type categoryTotalJSON struct {
	CategoryID   int64       `json:"category__id"`
	CategoryName string      `json:"category__name"`
	Type         core.TxType `json:"type"`
	Total        core.Money  `json:"total"`
}

type summaryJSON struct {
	Month        string              `json:"month"`
	Income       core.Money          `json:"income"`
	Expense      core.Money          `json:"expense"`
	BalanceMonth core.Money          `json:"balance_month"`
	BalanceTotal core.Money          `json:"balance_total"`
	TotalIncome  core.Money          `json:"total_income"`
	TotalExpense core.Money          `json:"total_expense"`
	ByCategory   []categoryTotalJSON `json:"by_category"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, CreatedAt: formatTime(c.CreatedAt)}
}

func toCategoriesJSON(cs []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCategoryJSON(c))
	}
	return out
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:           t.ID,
		Type:         t.Type,
		Amount:       t.Amount,
		Date:         t.Date,
		Description:  t.Description,
		Category:     t.CategoryID,
		CategoryName: t.CategoryName,
		CreatedAt:    formatTime(t.CreatedAt),
	}
}

func toTransactionsJSON(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

// toSummaryJSON always renders by_category as an array, never null.
func toSummaryJSON(s core.Summary) summaryJSON {
	rows := make([]categoryTotalJSON, 0, len(s.ByCategory))
	for _, ct := range s.ByCategory {
		rows = append(rows, categoryTotalJSON{
			CategoryID:   ct.CategoryID,
			CategoryName: ct.CategoryName,
			Type:         ct.Type,
			Total:        ct.Total,
		})
	}
	return summaryJSON{
		Month:        s.Period(),
		Income:       s.Income,
		Expense:      s.Expense,
		BalanceMonth: s.BalanceMonth(),
		BalanceTotal: s.BalanceTotal(),
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		ByCategory:   rows,
	}
}
