package sheets

import (
	"context"
	"strconv"

	"caixinha/internal/core"
)

// Header is the first row of the mirror sheet. Column A holds the
// transaction id and is used to locate rows.
var Header = []any{"ID", "Owner", "Date", "Type", "Amount", "Category", "Description"}

// MirrorRow is one transaction as it appears in the spreadsheet.
type MirrorRow struct {
	TransactionID int64
	Owner         string
	Date          core.Date
	Type          core.TxType
	Amount        core.Money
	Category      string
	Description   string
}

// Ports for outbound adapters.
type (
	// LedgerMirror keeps an external copy of the ledger in sync.
	LedgerMirror interface {
		// Upsert writes row, replacing an existing row with the same id.
		Upsert(ctx context.Context, row MirrorRow) error
		// Remove deletes the row for id. Removing a missing row is not an error.
		Remove(ctx context.Context, transactionID int64) error
	}
)

func RowFromTransaction(t core.Transaction) MirrorRow {
	return MirrorRow{
		TransactionID: t.ID,
		Owner:         t.Owner,
		Date:          t.Date,
		Type:          t.Type,
		Amount:        t.Amount,
		Category:      t.CategoryName,
		Description:   t.Description,
	}
}

// Values renders the row in Header order. Amounts are written as fixed
// two-decimal strings so the sheet never sees a float.
func (r MirrorRow) Values() []any {
	return []any{
		strconv.FormatInt(r.TransactionID, 10),
		r.Owner,
		r.Date.String(),
		string(r.Type),
		r.Amount.String(),
		r.Category,
		r.Description,
	}
}
