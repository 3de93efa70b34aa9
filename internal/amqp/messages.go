package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	TransactionSaved   EventKind = "transaction.saved"
	TransactionDeleted EventKind = "transaction.deleted"
	CategoryDeleted    EventKind = "category.deleted"
)

// LedgerEvent is a lightweight notification published after a commit.
// It carries ids only; consumers read current state from the database.
type LedgerEvent struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	UserID         string    `json:"user_id"`
	TransactionIDs []int64   `json:"transaction_ids,omitempty"`
	CategoryID     int64     `json:"category_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with a random id and the current time.
func NewLedgerEvent(kind EventKind, userID string, txIDs ...int64) *LedgerEvent {
	return &LedgerEvent{
		ID:             uuid.NewString(),
		Kind:           kind,
		UserID:         userID,
		TransactionIDs: txIDs,
		Timestamp:      time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event body
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
