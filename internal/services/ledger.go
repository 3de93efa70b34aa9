package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Ledger is the domain engine: category registry, transaction store,
// reconciliation and aggregation over one SQLite repository. Each public
// method runs in a single storage transaction.
type Ledger struct {
	store     *storage.SQLiteRepository
	publisher EventPublisher
	now       func() time.Time
}

type Option func(*Ledger)

// WithPublisher enables ledger events after each committed mutation.
func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithClock overrides the time source used for created_at and summary
// defaults.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store *storage.SQLiteRepository, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ready reports whether the underlying store answers.
func (l *Ledger) Ready(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// GetOrCreateFallback returns the global "Outros" category, creating it on
// first use. Safe under concurrent callers in independent processes.
func (l *Ledger) GetOrCreateFallback(ctx context.Context) (core.Category, error) {
	var fb core.Category
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		fb, err = q.EnsureFallback(ctx, l.now())
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("get or create fallback: %w", err)
	}
	return fb, nil
}

// EnsureUser records the first sight of user and provisions the fallback for
// it. It reports whether this call was the first sight.
func (l *Ledger) EnsureUser(ctx context.Context, user string) (bool, error) {
	if err := requireOwner(user); err != nil {
		return false, err
	}
	var firstSeen bool
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if firstSeen, err = q.RecordUser(ctx, user, l.now()); err != nil {
			return err
		}
		if !firstSeen {
			return nil
		}
		_, err = q.EnsureFallback(ctx, l.now())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	if firstSeen {
		slog.InfoContext(ctx, "Provisioned ledger user", "user_id", user)
	}
	return firstSeen, nil
}

// fallback fetches the fallback inside q's transaction, inserting it if an
// operator removed the seeded row.
func (l *Ledger) fallback(ctx context.Context, q *storage.Queries) (core.Category, error) {
	fb, err := q.GetFallback(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return q.EnsureFallback(ctx, l.now())
	}
	return fb, err
}

var errFallbackMissing = errors.New("fallback category missing")

// readTx runs fn in a read-only snapshot with the fallback resolved. Only
// when the fallback row is missing does it take the write lock, to recreate
// it, and then retries once.
func (l *Ledger) readTx(ctx context.Context, fn func(q *storage.Queries, fb core.Category) error) error {
	run := func() error {
		return l.store.InReadTx(ctx, func(q *storage.Queries) error {
			fb, err := q.GetFallback(ctx)
			if errors.Is(err, core.ErrNotFound) {
				return errFallbackMissing
			}
			if err != nil {
				return err
			}
			return fn(q, fb)
		})
	}
	err := run()
	if !errors.Is(err, errFallbackMissing) {
		return err
	}
	if _, err := l.GetOrCreateFallback(ctx); err != nil {
		return err
	}
	return run()
}

func (l *Ledger) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if l.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger event", "kind", ev.Kind)
		return
	}
	if err := l.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		// The mutation is committed; the mirror catches up on the next event.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", ev.Kind, "user_id", ev.UserID, "error", err)
	}
}

func requireOwner(user string) error {
	if strings.TrimSpace(user) == "" {
		return core.ErrNoOwner
	}
	return nil
}
