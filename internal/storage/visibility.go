package storage

// SQL counterparts of core.Category ownership and core.Transaction.OwnedBy.
// Every statement that touches categories or transactions on behalf of a user
// embeds one of these; each takes the user id as its single argument.
const (
	visibleCategory  = "(c.owner_id IS NULL OR c.owner_id = ?)"
	ownedTransaction = "t.owner_id = ?"
)
