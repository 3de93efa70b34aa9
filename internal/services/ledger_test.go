package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/storage"
)

var fixedNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *recordingPublisher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	l := NewLedger(repo, WithPublisher(pub), WithClock(func() time.Time { return fixedNow }))
	return l, pub, path
}

func expense(cents int64, date core.Date, ref core.CategoryRef) core.TransactionInput {
	return core.TransactionInput{Type: core.Expense, Amount: core.Money{Cents: cents}, Date: date, Category: ref}
}

func income(cents int64, date core.Date, ref core.CategoryRef) core.TransactionInput {
	return core.TransactionInput{Type: core.Income, Amount: core.Money{Cents: cents}, Date: date, Category: ref}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Field
}

func TestCreateCategoryRules(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	c, err := l.CreateCategory(ctx, "alice", "  Lazer ")
	require.NoError(t, err)
	assert.Equal(t, "Lazer", c.Name)
	assert.Equal(t, "alice", c.Owner)

	_, err = l.CreateCategory(ctx, "alice", "LAZER")
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	assert.Equal(t, "name", fieldOf(t, err))

	_, err = l.CreateCategory(ctx, "alice", "outros")
	assert.ErrorIs(t, err, core.ErrReservedName)

	_, err = l.CreateCategory(ctx, "alice", "")
	assert.ErrorIs(t, err, core.ErrEmptyName)

	_, err = l.CreateGlobalCategory(ctx, "Transporte")
	require.NoError(t, err)
	_, err = l.CreateCategory(ctx, "bob", "transporte")
	assert.ErrorIs(t, err, core.ErrDuplicateName, "a global name blocks owned duplicates")

	_, err = l.CreateCategory(ctx, "", "Anything")
	assert.ErrorIs(t, err, core.ErrNoOwner)
}

func TestRenameCategory(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	lazer, err := l.CreateCategory(ctx, "alice", "Lazer")
	require.NoError(t, err)
	_, err = l.CreateCategory(ctx, "alice", "Casa")
	require.NoError(t, err)
	global, err := l.CreateGlobalCategory(ctx, "Saúde")
	require.NoError(t, err)
	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)

	renamed, err := l.RenameCategory(ctx, "alice", lazer.ID, "Diversão")
	require.NoError(t, err)
	assert.Equal(t, "Diversão", renamed.Name)

	// same name with different case is allowed for the category itself
	_, err = l.RenameCategory(ctx, "alice", lazer.ID, "DIVERSÃO")
	require.NoError(t, err)

	_, err = l.RenameCategory(ctx, "alice", lazer.ID, "casa")
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	_, err = l.RenameCategory(ctx, "alice", lazer.ID, "Outros")
	assert.ErrorIs(t, err, core.ErrReservedName)
	_, err = l.RenameCategory(ctx, "bob", lazer.ID, "Mine")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = l.RenameCategory(ctx, "alice", global.ID, "Bem-estar")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = l.RenameCategory(ctx, "alice", fb.ID, "Misc")
	assert.ErrorIs(t, err, core.ErrProtected)
}

func TestCreateTransactionBindsFallback(t *testing.T) {
	l, pub, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)

	absent, err := l.CreateTransaction(ctx, "alice", expense(1000, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	require.NoError(t, err)
	assert.Equal(t, fb.ID, absent.CategoryID)
	assert.Equal(t, "Outros", absent.CategoryName)

	null, err := l.CreateTransaction(ctx, "alice", expense(1000, core.NewDate(2025, 3, 1), core.NullCategory()))
	require.NoError(t, err)
	assert.Equal(t, fb.ID, null.CategoryID)

	bobs, err := l.CreateCategory(ctx, "bob", "Privado")
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, "alice", expense(1000, core.NewDate(2025, 3, 1), core.CategoryID(bobs.ID)))
	assert.ErrorIs(t, err, core.ErrUnknownCategory)
	assert.Equal(t, "category", fieldOf(t, err))

	_, err = l.CreateTransaction(ctx, "alice", expense(1000, core.NewDate(2025, 3, 1), core.CategoryID(9999)))
	assert.Equal(t, "category", fieldOf(t, err))

	_, err = l.CreateTransaction(ctx, "alice", expense(0, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	assert.Equal(t, "amount", fieldOf(t, err))

	assert.Equal(t, []amqp.EventKind{amqp.TransactionSaved, amqp.TransactionSaved}, pub.kinds())
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	l, pub, _ := newTestLedger(t)
	pub.err = errors.New("broker down")

	tx, err := l.CreateTransaction(context.Background(), "alice", income(500, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
}

func TestUpdateTransactionCategoryStates(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)
	food, err := l.CreateCategory(ctx, "alice", "Alimentação")
	require.NoError(t, err)
	fun, err := l.CreateCategory(ctx, "alice", "Lazer")
	require.NoError(t, err)

	tx, err := l.CreateTransaction(ctx, "alice", expense(2500, core.NewDate(2025, 3, 2), core.CategoryID(food.ID)))
	require.NoError(t, err)

	// absent leaves the reference untouched
	desc := "mercado"
	got, err := l.UpdateTransaction(ctx, "alice", tx.ID, core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, food.ID, got.CategoryID)
	assert.Equal(t, "mercado", got.Description)

	// explicit id rebinds
	got, err = l.UpdateTransaction(ctx, "alice", tx.ID, core.TransactionPatch{Category: core.CategoryID(fun.ID)})
	require.NoError(t, err)
	assert.Equal(t, fun.ID, got.CategoryID)

	// explicit null rebinds to the fallback
	got, err = l.UpdateTransaction(ctx, "alice", tx.ID, core.TransactionPatch{Category: core.NullCategory()})
	require.NoError(t, err)
	assert.Equal(t, fb.ID, got.CategoryID)

	// full replacement
	typ, amount, date := core.Income, core.Money{Cents: 99}, core.NewDate(2025, 4, 1)
	empty := ""
	got, err = l.UpdateTransaction(ctx, "alice", tx.ID, core.TransactionPatch{
		Type: &typ, Amount: &amount, Date: &date, Description: &empty, Category: core.CategoryID(food.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, core.Income, got.Type)
	assert.Equal(t, int64(99), got.Amount.Cents)
	assert.Equal(t, "2025-04-01", got.Date.String())
	assert.Equal(t, food.ID, got.CategoryID)

	_, err = l.UpdateTransaction(ctx, "bob", tx.ID, core.TransactionPatch{Description: &desc})
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := core.Money{}
	_, err = l.UpdateTransaction(ctx, "alice", tx.ID, core.TransactionPatch{Amount: &bad})
	assert.Equal(t, "amount", fieldOf(t, err))
}

func TestTransactionOwnership(t *testing.T) {
	l, pub, _ := newTestLedger(t)
	ctx := context.Background()

	tx, err := l.CreateTransaction(ctx, "alice", expense(100, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	require.NoError(t, err)

	_, err = l.GetTransaction(ctx, "bob", tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, l.DeleteTransaction(ctx, "bob", tx.ID), core.ErrNotFound)

	page, err := l.ListTransactions(ctx, "bob", core.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Count)
	assert.Empty(t, page.Results)

	require.NoError(t, l.DeleteTransaction(ctx, "alice", tx.ID))
	_, err = l.GetTransaction(ctx, "alice", tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []amqp.EventKind{amqp.TransactionSaved, amqp.TransactionDeleted}, pub.kinds())
}

func TestRecentTransactions(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	for day := 1; day <= 12; day++ {
		_, err := l.CreateTransaction(ctx, "alice", expense(int64(day*100), core.NewDate(2025, 3, day), core.CategoryRef{}))
		require.NoError(t, err)
	}

	recent, err := l.RecentTransactions(ctx, "alice", core.TransactionFilter{}, DefaultRecentLimit)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, 12, recent[0].Date.Day())

	one, err := l.RecentTransactions(ctx, "alice", core.TransactionFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	assert.Equal(t, 50, ClampRecentLimit(500))
	assert.Equal(t, 1, ClampRecentLimit(-3))
}

func TestDeleteFallbackIsProtected(t *testing.T) {
	l, pub, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)
	tx, err := l.CreateTransaction(ctx, "alice", expense(100, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	require.NoError(t, err)

	_, err = l.DeleteCategory(ctx, "alice", fb.ID)
	assert.ErrorIs(t, err, core.ErrProtected)

	still, err := l.GetTransaction(ctx, "alice", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, fb.ID, still.CategoryID)
	assert.NotContains(t, pub.kinds(), amqp.CategoryDeleted)
}

func TestDeleteCategoryVisibility(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	bobs, err := l.CreateCategory(ctx, "bob", "Privado")
	require.NoError(t, err)

	_, err = l.DeleteCategory(ctx, "alice", bobs.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = l.DeleteCategory(ctx, "alice", 424242)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = l.GetCategory(ctx, "bob", bobs.ID)
	require.NoError(t, err)
}

// Alice deletes "Alimentação": her food transactions land in "Outros" and the
// summary reflects it, while "Lazer" is unaffected.
func TestReconcileScenario(t *testing.T) {
	l, pub, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)
	food, err := l.CreateCategory(ctx, "alice", "Alimentação")
	require.NoError(t, err)
	fun, err := l.CreateCategory(ctx, "alice", "Lazer")
	require.NoError(t, err)

	march := func(day int) core.Date { return core.NewDate(2025, 3, day) }
	t1, err := l.CreateTransaction(ctx, "alice", expense(4000, march(3), core.CategoryID(food.ID)))
	require.NoError(t, err)
	t2, err := l.CreateTransaction(ctx, "alice", expense(6050, march(9), core.CategoryID(food.ID)))
	require.NoError(t, err)
	t3, err := l.CreateTransaction(ctx, "alice", expense(3000, march(10), core.CategoryID(fun.ID)))
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, "alice", income(500000, march(5), core.CategoryRef{}))
	require.NoError(t, err)

	res, err := l.DeleteCategory(ctx, "alice", food.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{t1.ID, t2.ID}, res.Reassigned)
	assert.Equal(t, fb.ID, res.FallbackID)
	assert.False(t, res.WasGlobal)

	for _, id := range []int64{t1.ID, t2.ID} {
		tx, err := l.GetTransaction(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, fb.ID, tx.CategoryID)
	}
	lazer, err := l.GetTransaction(ctx, "alice", t3.ID)
	require.NoError(t, err)
	assert.Equal(t, fun.ID, lazer.CategoryID)

	_, err = l.GetCategory(ctx, "alice", food.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	s, err := l.Summarize(ctx, "alice", 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", s.Income.String())
	assert.Equal(t, "130.50", s.Expense.String())
	assert.Equal(t, "4869.50", s.BalanceMonth().String())
	assert.Equal(t, []core.CategoryTotal{
		{CategoryID: fb.ID, CategoryName: "Outros", Type: core.Income, Total: core.Money{Cents: 500000}},
		{CategoryID: fun.ID, CategoryName: "Lazer", Type: core.Expense, Total: core.Money{Cents: 3000}},
		{CategoryID: fb.ID, CategoryName: "Outros", Type: core.Expense, Total: core.Money{Cents: 10050}},
	}, s.ByCategory)

	assert.Contains(t, pub.kinds(), amqp.CategoryDeleted)
}

func TestDeleteGlobalCategoryTouchesOnlyCaller(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.GetOrCreateFallback(ctx)
	require.NoError(t, err)
	travel, err := l.CreateGlobalCategory(ctx, "Viagem")
	require.NoError(t, err)

	mine, err := l.CreateTransaction(ctx, "alice", expense(100, core.NewDate(2025, 3, 1), core.CategoryID(travel.ID)))
	require.NoError(t, err)
	theirs, err := l.CreateTransaction(ctx, "bob", expense(200, core.NewDate(2025, 3, 1), core.CategoryID(travel.ID)))
	require.NoError(t, err)

	res, err := l.DeleteCategory(ctx, "alice", travel.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine.ID}, res.Reassigned)
	assert.True(t, res.WasGlobal)

	// bob's row now holds NULL but reads as the fallback
	got, err := l.GetTransaction(ctx, "bob", theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, fb.ID, got.CategoryID)

	s, err := l.Summarize(ctx, "bob", 2025, 3)
	require.NoError(t, err)
	require.Len(t, s.ByCategory, 1)
	assert.Equal(t, fb.ID, s.ByCategory[0].CategoryID)

	repaired, err := l.RepairOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.OrphanedTransaction{{ID: theirs.ID, Owner: "bob"}}, repaired)
}

func TestSummaryDefaultsAndTotals(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	empty, err := l.Summarize(ctx, "alice", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", empty.Period())
	assert.Equal(t, "0.00", empty.Income.String())
	assert.Equal(t, "0.00", empty.BalanceTotal().String())
	assert.Empty(t, empty.ByCategory)

	_, err = l.CreateTransaction(ctx, "alice", income(10000, core.NewDate(2025, 2, 1), core.CategoryRef{}))
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, "alice", expense(2550, core.NewDate(2025, 3, 31), core.CategoryRef{}))
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, "alice", expense(1, core.NewDate(2025, 4, 1), core.CategoryRef{}))
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, "bob", income(777, core.NewDate(2025, 3, 1), core.CategoryRef{}))
	require.NoError(t, err)

	s, err := l.Summarize(ctx, "alice", 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.00", s.Income.String())
	assert.Equal(t, "25.50", s.Expense.String())
	assert.Equal(t, "-25.50", s.BalanceMonth().String())
	assert.Equal(t, "100.00", s.TotalIncome.String())
	assert.Equal(t, "25.51", s.TotalExpense.String())
	assert.Equal(t, "74.49", s.BalanceTotal().String())
}

func TestEnsureUserFirstSight(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again)

	cats, err := l.ListCategories(ctx, "alice", core.CategoryListOptions{})
	require.NoError(t, err)
	require.Len(t, cats, 1, "no per-user Outros is created")
	assert.True(t, cats[0].IsFallback())
}

// Independent processes racing on first use must converge on one fallback.
func TestConcurrentFallbackProvisioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	seed, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer seed.Close()

	// Start from a database without the seeded row.
	fb, err := seed.Queries().GetFallback(context.Background())
	require.NoError(t, err)
	require.NoError(t, seed.Queries().DeleteCategory(context.Background(), fb.ID))

	const workers = 8
	ledgers := make([]*Ledger, workers)
	for i := range ledgers {
		repo, err := storage.NewSQLiteRepository(path)
		require.NoError(t, err)
		defer repo.Close()
		ledgers[i] = NewLedger(repo)
	}

	ids := make([]int64, workers)
	var g errgroup.Group
	for i, l := range ledgers {
		g.Go(func() error {
			c, err := l.GetOrCreateFallback(context.Background())
			ids[i] = c.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := seed.Queries().ListAllCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// Reads recreate a missing fallback before answering.
func TestReadsRecreateMissingFallback(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	fb, err := l.store.Queries().GetFallback(ctx)
	require.NoError(t, err)
	require.NoError(t, l.store.Queries().DeleteCategory(ctx, fb.ID))

	tests := []struct {
		name string
		read func() error
	}{
		{"list transactions", func() error {
			_, err := l.ListTransactions(ctx, "alice", core.TransactionFilter{})
			return err
		}},
		{"summary", func() error {
			_, err := l.Summarize(ctx, "alice", 2025, 3)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.read())
			got, err := l.store.Queries().GetFallback(ctx)
			require.NoError(t, err)
			assert.True(t, got.IsFallback())
		})
	}
}
