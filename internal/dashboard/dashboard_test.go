package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendboard/internal/amqp"
	"spendboard/internal/core"
	"spendboard/internal/editor"
	"spendboard/internal/ledger"
	"spendboard/internal/session"
	"spendboard/internal/storage/memory"
)

var now = time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	txs     []core.Transaction
	nextID  int
	listErr error
	mutErr  error
	calls   []string
}

func (g *fakeGateway) List(context.Context) ([]core.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "list")
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]core.Transaction{}, g.txs...), nil
}

func (g *fakeGateway) Create(_ context.Context, d core.Draft) (core.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "create")
	if g.mutErr != nil {
		return core.Transaction{}, g.mutErr
	}
	g.nextID++
	tx := core.Transaction{ID: fmt.Sprintf("new%d", g.nextID), Reason: d.Reason, Amount: d.Amount, Type: d.Type, Category: d.Category, Date: d.Date}
	g.txs = append(g.txs, tx)
	return tx, nil
}

func (g *fakeGateway) Update(_ context.Context, id string, d core.Draft) (core.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "update:"+id)
	if g.mutErr != nil {
		return core.Transaction{}, g.mutErr
	}
	for i := range g.txs {
		if g.txs[i].ID == id {
			g.txs[i] = core.Transaction{ID: id, Reason: d.Reason, Amount: d.Amount, Type: d.Type, Category: d.Category, Date: d.Date}
			return g.txs[i], nil
		}
	}
	return core.Transaction{}, errors.New("not found")
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "delete:"+id)
	if g.mutErr != nil {
		return g.mutErr
	}
	for i := range g.txs {
		if g.txs[i].ID == id {
			g.txs = append(g.txs[:i], g.txs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g *fakeGateway) mutations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		if c != "list" {
			out = append(out, c)
		}
	}
	return out
}

type recorder struct {
	events []*amqp.TransactionEvent
	saves  []session.Settings
}

func (r *recorder) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) save(_ context.Context, s session.Settings) error {
	r.saves = append(r.saves, s)
	return nil
}

func tx(id, reason, amount string, typ core.TxType, category string, y, m, d int) core.Transaction {
	return core.Transaction{ID: id, Reason: reason, Amount: decimal.RequireFromString(amount), Type: typ, Category: category, Date: core.NewDate(y, m, d)}
}

func mayTransactions(n int) []core.Transaction {
	out := make([]core.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, tx(fmt.Sprintf("t%02d", i), fmt.Sprintf("item %d", i), "10", core.Spent, "Food", 2024, 5, 1+i%28))
	}
	return out
}

func newTestDashboard(t *testing.T, txs []core.Transaction) (*Dashboard, *fakeGateway, *recorder) {
	t.Helper()
	gw := &fakeGateway{txs: txs}
	rec := &recorder{}
	d := New(session.Defaults(now, "€"), Options{
		Save:      rec.save,
		Publisher: rec,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, d.Mount(context.Background(), gw))
	return d, gw, rec
}

func TestMountDerivesView(t *testing.T) {
	d, _, _ := newTestDashboard(t, []core.Transaction{
		tx("1", "Rent", "900", core.Spent, "Home", 2024, 5, 1),
		tx("2", "Salary", "3000", core.Earned, "Job", 2024, 5, 28),
		tx("3", "Old", "5", core.Spent, "Misc", 2024, 4, 2),
	})

	v := d.View()
	require.Len(t, v.Filtered, 2)
	assert.True(t, v.Totals.Spent.Equal(decimal.NewFromInt(900)))
	assert.True(t, v.Totals.Earned.Equal(decimal.NewFromInt(3000)))
	assert.True(t, v.Totals.Investment.IsZero())
	assert.Equal(t, 1, v.Page.Number)
	assert.Equal(t, []core.Month{{Year: 2024, Month: time.April}, {Year: 2024, Month: time.May}}, v.Months)
	assert.True(t, d.Mounted())
}

func TestListFailureKeepsCollection(t *testing.T) {
	d, gw, _ := newTestDashboard(t, mayTransactions(3))
	gw.listErr = errors.New("boom")

	err := d.Refresh(context.Background(), gw)
	require.Error(t, err)
	assert.Equal(t, err, d.LoadError())
	assert.Len(t, d.Transactions(), 3)

	gw.listErr = nil
	require.NoError(t, d.Refresh(context.Background(), gw))
	assert.NoError(t, d.LoadError())
}

func TestFilterChangesResetPageAndPersist(t *testing.T) {
	ctx := context.Background()
	d, _, rec := newTestDashboard(t, mayTransactions(25))

	d.SetPage(3)
	assert.Equal(t, 3, d.View().Page.Number)

	require.NoError(t, d.SetFilterType(ctx, "spent"))
	assert.Equal(t, 1, d.View().Page.Number)
	require.Len(t, rec.saves, 1)
	assert.Equal(t, "spent", rec.saves[0].FilterType)

	d.SetPage(2)
	require.NoError(t, d.SetCurrency(ctx, "$"))
	assert.Equal(t, 2, d.View().Page.Number, "currency must not reset the page")
	assert.Equal(t, "$", d.Settings().Currency)

	require.NoError(t, d.SetFilterCategory(ctx, " foo "))
	assert.Equal(t, "foo", d.Settings().FilterCategory)
	assert.NotEmpty(t, d.View().Filtered, "foo is a case-folded substring of Food")
	for _, tx := range d.View().Filtered {
		assert.Equal(t, "Food", tx.Category)
	}

	require.NoError(t, d.SetFilterCategory(ctx, "zzz"))
	assert.Empty(t, d.View().Filtered)

	require.NoError(t, d.SetMonth(ctx, core.Month{Year: 2024, Month: time.April}))
	assert.Equal(t, 1, d.View().Page.Number)
	assert.Len(t, rec.saves, 5)
}

func TestInvalidFiltersRejected(t *testing.T) {
	ctx := context.Background()
	d, _, rec := newTestDashboard(t, nil)

	assert.ErrorIs(t, d.SetFilterType(ctx, "refund"), ErrInvalidFilter)
	assert.ErrorIs(t, d.SetCurrency(ctx, "  "), ErrInvalidFilter)
	assert.ErrorIs(t, d.SetMonth(ctx, core.Month{}), core.ErrInvalidMonth)
	assert.Empty(t, rec.saves)
	assert.Equal(t, ledger.TypeAll, d.Settings().FilterType)
}

func TestSetFiltersSavesOnce(t *testing.T) {
	d, _, rec := newTestDashboard(t, mayTransactions(12))
	d.SetPage(2)

	june := ledger.Filter{Type: "earned", Category: "job", Month: core.Month{Year: 2024, Month: time.June}}
	err := d.SetFilters(context.Background(), june, "$")
	require.NoError(t, err)
	require.Len(t, rec.saves, 1, "filters and currency share one save")
	assert.Equal(t, session.Settings{FilterType: "earned", FilterCategory: "job", SelectedMonth: core.Month{Year: 2024, Month: time.June}, Currency: "$"}, rec.saves[0])
	assert.Equal(t, 1, d.View().Page.Number)

	// unchanged filters do not write again
	require.NoError(t, d.SetFilters(context.Background(), june, "$"))
	assert.Len(t, rec.saves, 1)

	// a currency-only change saves once and keeps the page
	d.SetPage(2)
	require.NoError(t, d.SetFilters(context.Background(), june, "£"))
	assert.Len(t, rec.saves, 2)
	assert.Equal(t, 2, d.page, "currency alone keeps the requested page")

	assert.ErrorIs(t, d.SetFilters(context.Background(), june, " "), ErrInvalidFilter)
	assert.Len(t, rec.saves, 2)
}

func TestPageClampedToLast(t *testing.T) {
	d, _, _ := newTestDashboard(t, mayTransactions(25))
	d.SetPage(99)
	v := d.View()
	assert.Equal(t, 3, v.Page.Number)
	assert.Equal(t, 3, v.Page.Count)
	assert.Len(t, v.Page.Items, 5)
}

func TestSubmitCreate(t *testing.T) {
	ctx := context.Background()
	d, gw, rec := newTestDashboard(t, nil)

	created, err := d.Submit(ctx, gw, editor.Form{Reason: "Coffee", Amount: "2.50", Type: "spent", Category: "Food", Date: "2024-05-15"})
	require.NoError(t, err)
	assert.Equal(t, "new1", created.ID)

	assert.Equal(t, []string{"create"}, gw.mutations())
	assert.Len(t, d.View().Filtered, 1, "collection is refetched after create")
	assert.Equal(t, editor.DefaultForm(now), d.Form())
	require.Len(t, rec.events, 1)
	assert.Equal(t, amqp.ActionCreated, rec.events[0].Action)
	assert.Equal(t, "new1", rec.events[0].ID)
}

func TestSubmitUpdate(t *testing.T) {
	ctx := context.Background()
	d, gw, rec := newTestDashboard(t, []core.Transaction{tx("a", "Rent", "900", core.Spent, "Home", 2024, 5, 1)})

	require.NoError(t, d.Edit("a"))
	id, editing := d.Editing()
	assert.True(t, editing)
	assert.Equal(t, "a", id)
	assert.Equal(t, "Rent", d.Form().Reason)

	f := d.Form()
	f.Amount = "950"
	_, err := d.Submit(ctx, gw, f)
	require.NoError(t, err)

	assert.Equal(t, []string{"update:a"}, gw.mutations())
	_, editing = d.Editing()
	assert.False(t, editing)
	assert.True(t, d.View().Totals.Spent.Equal(decimal.NewFromInt(950)))
	require.Len(t, rec.events, 1)
	assert.Equal(t, amqp.ActionUpdated, rec.events[0].Action)
}

func TestSubmitInvalidFormMakesNoCall(t *testing.T) {
	d, gw, rec := newTestDashboard(t, nil)
	bad := editor.Form{Reason: "", Amount: "5", Type: "spent", Date: "2024-05-01"}

	_, err := d.Submit(context.Background(), gw, bad)
	assert.ErrorIs(t, err, core.ErrEmptyReason)
	assert.Empty(t, gw.mutations())
	assert.Equal(t, bad, d.Form(), "form is kept for correction")
	assert.Empty(t, rec.events)
}

func TestSubmitFailureKeepsEditing(t *testing.T) {
	d, gw, rec := newTestDashboard(t, []core.Transaction{tx("a", "Rent", "900", core.Spent, "Home", 2024, 5, 1)})
	require.NoError(t, d.Edit("a"))
	gw.mutErr = errors.New("rejected")

	_, err := d.Submit(context.Background(), gw, d.Form())
	require.Error(t, err)
	id, editing := d.Editing()
	assert.True(t, editing)
	assert.Equal(t, "a", id)
	assert.Empty(t, rec.events)
}

func TestEditUnknownID(t *testing.T) {
	d, _, _ := newTestDashboard(t, nil)
	assert.ErrorIs(t, d.Edit("missing"), ErrNotFound)
}

func TestDeleteDeclined(t *testing.T) {
	d, gw, rec := newTestDashboard(t, mayTransactions(2))

	err := d.Delete(context.Background(), gw, "t01", false)
	assert.ErrorIs(t, err, ErrDeleteDeclined)
	assert.Empty(t, gw.mutations())
	assert.Len(t, d.Transactions(), 2)
	assert.Empty(t, rec.events)
}

func TestDeleteConfirmedCancelsMatchingEdit(t *testing.T) {
	d, gw, rec := newTestDashboard(t, mayTransactions(2))
	require.NoError(t, d.Edit("t01"))

	require.NoError(t, d.Delete(context.Background(), gw, "t01", true))
	assert.Equal(t, []string{"delete:t01"}, gw.mutations())
	assert.Len(t, d.Transactions(), 1)
	_, editing := d.Editing()
	assert.False(t, editing)
	require.Len(t, rec.events, 1)
	assert.Equal(t, amqp.ActionDeleted, rec.events[0].Action)
	assert.Equal(t, "item 1", rec.events[0].Reason)
}

func TestDeleteFailureReturnsError(t *testing.T) {
	d, gw, rec := newTestDashboard(t, mayTransactions(2))
	gw.mutErr = errors.New("server said no")

	err := d.Delete(context.Background(), gw, "t01", true)
	require.Error(t, err)
	assert.Len(t, d.Transactions(), 2)
	assert.Empty(t, rec.events)
}

func TestExportWritesFilteredSet(t *testing.T) {
	txs := mayTransactions(15)
	txs = append(txs, tx("x", "Elsewhere", "1", core.Spent, "", 2024, 3, 1))
	d, _, _ := newTestDashboard(t, txs)
	d.SetPage(2)

	var buf bytes.Buffer
	name, err := d.Export(&buf)
	require.NoError(t, err)
	assert.Equal(t, "transactions_2024-05.csv", name)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 16, "header plus every filtered row, not just one page")
	assert.Equal(t, []string{"reason", "amount", "type", "category", "date"}, rows[0])
}

func TestSnapshotIncludesSelectedMonth(t *testing.T) {
	d, _, _ := newTestDashboard(t, []core.Transaction{tx("1", "Old", "5", core.Spent, "", 2023, 1, 2)})
	s := d.Snapshot()
	assert.Equal(t, []core.Month{{Year: 2023, Month: time.January}, {Year: 2024, Month: time.May}}, s.Months)
	assert.Equal(t, editor.Creating, s.Mode)
	assert.NoError(t, s.LoadErr)
}

func TestRegistryBuildsOncePerSession(t *testing.T) {
	builds := 0
	r := NewRegistry(4, time.Hour, func(_ context.Context, sid string) (*Dashboard, error) {
		builds++
		return New(session.Defaults(now, "€"), Options{}), nil
	})
	ctx := context.Background()

	a, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	b, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, builds)

	r.Forget("s1")
	c, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, builds)
}

func TestRegistryCountsEvictions(t *testing.T) {
	r := NewRegistry(1, time.Hour, func(context.Context, string) (*Dashboard, error) {
		return New(session.Defaults(now, "€"), Options{}), nil
	})
	ctx := context.Background()

	_, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	r.Forget("s1")
	assert.Zero(t, r.Evicted(), "Forget is not an eviction")

	_, err = r.Get(ctx, "s1")
	require.NoError(t, err)
	_, err = r.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Evicted())
	assert.Equal(t, 1, r.Size())
}

func TestRegistryBuildError(t *testing.T) {
	r := NewRegistry(4, time.Hour, func(context.Context, string) (*Dashboard, error) {
		return nil, errors.New("store down")
	})
	_, err := r.Get(context.Background(), "s1")
	assert.Error(t, err)
	assert.Equal(t, 0, r.Size())
}

func TestSessionBuilderRestoresAndPersistsSettings(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "s1", session.KeyCurrency, "$"))
	require.NoError(t, store.Set(ctx, "s1", session.KeyFilterType, "spent"))
	require.NoError(t, store.Set(ctx, "s1", session.KeySelectedMonth, "2024-02"))

	d, err := SessionBuilder(store, "€", Options{})(ctx, "s1")
	require.NoError(t, err)

	set := d.Settings()
	assert.Equal(t, "$", set.Currency)
	assert.Equal(t, "spent", set.FilterType)
	assert.Equal(t, core.Month{Year: 2024, Month: time.February}, set.SelectedMonth)

	require.NoError(t, d.SetFilterCategory(ctx, " food "))
	v, ok, err := store.Get(ctx, "s1", session.KeyFilterCategory)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "food", v)
}
