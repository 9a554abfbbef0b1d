// Package dashboard is the per-session controller behind the transaction
// dashboard. It owns the fetched collection, the user's filter settings, the
// current page and the editor, and derives everything the UI renders.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"spendboard/internal/amqp"
	"spendboard/internal/cache"
	"spendboard/internal/core"
	"spendboard/internal/editor"
	"spendboard/internal/export"
	"spendboard/internal/ledger"
	"spendboard/internal/log"
	"spendboard/internal/session"
)

var (
	// ErrDeleteDeclined is returned when a delete was not confirmed.
	ErrDeleteDeclined = errors.New("delete declined")
	// ErrNotFound is returned for ids absent from the loaded collection.
	ErrNotFound = errors.New("transaction not found")
	// ErrInvalidFilter is returned for unknown type filters and blank currencies.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Gateway is the record gateway the dashboard reads and mutates through.
type Gateway interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Update(ctx context.Context, id string, d core.Draft) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Publisher receives an event after every successful mutation.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// SaveFunc persists the settings.
type SaveFunc func(ctx context.Context, s session.Settings) error

type Options struct {
	Save      SaveFunc
	Publisher Publisher
	Now       func() time.Time
	Logger    *slog.Logger
}

// Dashboard is safe for concurrent use. Operations on one dashboard are
// serialized.
type Dashboard struct {
	mu sync.Mutex

	settings session.Settings
	page     int

	txs     []core.Transaction
	version uint64
	mounted bool
	loadErr error

	editor    *editor.Editor
	views     *cache.LRUCache[ledger.View]
	save      SaveFunc
	publisher Publisher
	logger    *slog.Logger
}

func New(settings session.Settings, opts Options) *Dashboard {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dashboard{
		settings:  settings,
		page:      1,
		txs:       []core.Transaction{},
		editor:    editor.New(opts.Now),
		views:     cache.NewLRUCache[ledger.View](8, 10*time.Minute),
		save:      opts.Save,
		publisher: opts.Publisher,
		logger:    opts.Logger.With(log.FieldComponent, log.ComponentDashboard),
	}
}

// Mount loads the collection for a fresh page view.
func (d *Dashboard) Mount(ctx context.Context, gw Gateway) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mounted = true
	return d.refresh(ctx, gw)
}

// Mounted reports whether a collection fetch was ever attempted.
func (d *Dashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

// Refresh refetches the collection. On failure the previous collection is
// kept and the error is reported by LoadError until the next success.
func (d *Dashboard) Refresh(ctx context.Context, gw Gateway) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh(ctx, gw)
}

func (d *Dashboard) refresh(ctx context.Context, gw Gateway) error {
	txs, err := gw.List(ctx)
	if err != nil {
		d.loadErr = err
		d.logger.WarnContext(ctx, "Failed to load transactions", log.FieldError, err)
		return err
	}
	d.txs = txs
	d.version++
	d.loadErr = nil
	return nil
}

func (d *Dashboard) LoadError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// Transactions returns the full loaded collection.
func (d *Dashboard) Transactions() []core.Transaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Transaction(nil), d.txs...)
}

func (d *Dashboard) Settings() session.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// View derives the current view. Results are memoized per collection
// version, filter and page; callers must not modify the returned slices.
func (d *Dashboard) View() ledger.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view()
}

func (d *Dashboard) view() ledger.View {
	f := d.settings.Filter()
	key := fmt.Sprintf("%d|%s|%q|%s|%d", d.version, f.Type, f.Category, f.Month, d.page)
	v := d.views.GetOrCreate(key, func() ledger.View {
		return ledger.Derive(d.txs, ledger.State{Filter: f, Page: d.page})
	})
	d.page = v.Page.Number
	return v
}

// Snapshot is everything the dashboard page renders at one moment.
type Snapshot struct {
	View      ledger.View
	Settings  session.Settings
	Months    []core.Month
	Mode      editor.Mode
	EditingID string
	Form      editor.Form
	LoadErr   error
}

func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.view()
	return Snapshot{
		View:      v,
		Settings:  d.settings,
		Months:    monthOptions(v.Months, d.settings.SelectedMonth),
		Mode:      d.editor.Mode(),
		EditingID: d.editor.EditingID(),
		Form:      d.editor.Form(),
		LoadErr:   d.loadErr,
	}
}

// monthOptions adds the selected month to the months present in the data so
// the selector can always show it.
func monthOptions(months []core.Month, selected core.Month) []core.Month {
	for _, m := range months {
		if m == selected {
			return months
		}
	}
	out := append(append([]core.Month(nil), months...), selected)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SetFilterType sets the type filter to "all" or one of the transaction types.
func (d *Dashboard) SetFilterType(ctx context.Context, typ string) error {
	if !ledger.ValidType(typ) {
		return fmt.Errorf("%w: type %q", ErrInvalidFilter, typ)
	}
	return d.update(ctx, true, func(s *session.Settings) { s.FilterType = typ })
}

func (d *Dashboard) SetFilterCategory(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	return d.update(ctx, true, func(s *session.Settings) { s.FilterCategory = category })
}

func (d *Dashboard) SetMonth(ctx context.Context, m core.Month) error {
	if m.IsZero() {
		return core.ErrInvalidMonth
	}
	return d.update(ctx, true, func(s *session.Settings) { s.SelectedMonth = m })
}

// SetCurrency changes the display symbol. The page is kept.
func (d *Dashboard) SetCurrency(ctx context.Context, currency string) error {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidFilter)
	}
	return d.update(ctx, false, func(s *session.Settings) { s.Currency = currency })
}

// SetFilters applies a whole filter form, currency included, with a single
// save. The page resets only when a filter field changed.
func (d *Dashboard) SetFilters(ctx context.Context, f ledger.Filter, currency string) error {
	if f.Type == "" {
		f.Type = ledger.TypeAll
	}
	if !ledger.ValidType(f.Type) {
		return fmt.Errorf("%w: type %q", ErrInvalidFilter, f.Type)
	}
	if f.Month.IsZero() {
		return core.ErrInvalidMonth
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidFilter)
	}
	category := strings.TrimSpace(f.Category)
	return d.update(ctx, true, func(s *session.Settings) {
		s.FilterType = f.Type
		s.FilterCategory = category
		s.SelectedMonth = f.Month
		s.Currency = currency
	})
}

func (d *Dashboard) update(ctx context.Context, resetPage bool, apply func(*session.Settings)) error {
	d.mu.Lock()
	before := d.settings
	apply(&d.settings)
	changed := d.settings != before
	if resetPage && d.settings.Filter() != before.Filter() {
		d.page = 1
	}
	settings := d.settings
	d.mu.Unlock()

	if !changed || d.save == nil {
		return nil
	}
	if err := d.save(ctx, settings); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

// SetPage moves to page n. Out of range values are clamped when the view is
// derived.
func (d *Dashboard) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	d.mu.Lock()
	d.page = n
	d.mu.Unlock()
}

// Edit loads transaction id into the form and switches to editing.
func (d *Dashboard) Edit(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx, ok := d.find(id)
	if !ok {
		return ErrNotFound
	}
	d.editor.Edit(tx)
	return nil
}

func (d *Dashboard) CancelEdit() {
	d.mu.Lock()
	d.editor.Cancel()
	d.mu.Unlock()
}

func (d *Dashboard) Form() editor.Form {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor.Form()
}

// Editing returns the id under edit and whether the editor is editing.
func (d *Dashboard) Editing() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor.EditingID(), d.editor.Mode() == editor.Editing
}

// Submit creates or updates through the editor, then refetches the
// collection. A failed refetch does not fail the submit; it shows up in
// LoadError instead.
func (d *Dashboard) Submit(ctx context.Context, gw Gateway, f editor.Form) (core.Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	action := amqp.ActionCreated
	editingID := d.editor.EditingID()
	if d.editor.Mode() == editor.Editing {
		action = amqp.ActionUpdated
	}

	tx, err := d.editor.Submit(ctx, f, gw)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = editingID
	}

	d.publish(ctx, action, tx)
	_ = d.refresh(ctx, gw)
	return tx, nil
}

// Delete removes transaction id once confirmed. An unconfirmed delete is a
// no-op returning ErrDeleteDeclined.
func (d *Dashboard) Delete(ctx context.Context, gw Gateway, id string, confirmed bool) error {
	if !confirmed {
		return ErrDeleteDeclined
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, ok := d.find(id)
	if !ok {
		tx = core.Transaction{ID: id}
	}
	if err := gw.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if d.editor.Mode() == editor.Editing && d.editor.EditingID() == id {
		d.editor.Cancel()
	}

	d.publish(ctx, amqp.ActionDeleted, tx)
	_ = d.refresh(ctx, gw)
	return nil
}

// Export writes the filtered collection, all pages, as CSV and returns the
// download filename.
func (d *Dashboard) Export(w io.Writer) (string, error) {
	d.mu.Lock()
	v := d.view()
	month := d.settings.SelectedMonth
	d.mu.Unlock()

	if err := export.WriteCSV(w, v.Filtered); err != nil {
		return "", fmt.Errorf("export transactions: %w", err)
	}
	return export.Filename(month), nil
}

func (d *Dashboard) find(id string) (core.Transaction, bool) {
	for _, tx := range d.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

func (d *Dashboard) publish(ctx context.Context, action amqp.Action, tx core.Transaction) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(action, tx)); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldAction, action,
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
	}
}
