package core

// CategoryTotal is one by-category row of a monthly summary.
type CategoryTotal struct {
	CategoryID   int64
	CategoryName string
	Type         TxType
	Total        Money
}

// Summary is the monthly overview of one user's ledger.
type Summary struct {
	Year         int
	Month        int // 1-12
	Income       Money
	Expense      Money
	TotalIncome  Money
	TotalExpense Money
	ByCategory   []CategoryTotal
}

func (s Summary) BalanceMonth() Money {
	return s.Income.Sub(s.Expense)
}

func (s Summary) BalanceTotal() Money {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// Period renders the summary month as YYYY-MM.
func (s Summary) Period() string {
	return FormatPeriod(s.Year, s.Month)
}
