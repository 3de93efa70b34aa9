package storage

import (
	"context"
	"fmt"
	"time"
)

// RecordUser stores the first sight of a user identity. firstSeen is true
// only for the call that inserted the row.
func (q *Queries) RecordUser(ctx context.Context, id string, at time.Time) (firstSeen bool, err error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ledger_users (id, first_seen_at) VALUES (?, ?)`,
		id, formatTimestamp(at))
	if err != nil {
		return false, fmt.Errorf("record user: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
