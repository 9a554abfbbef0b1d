package http

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"spendboard/internal/core"
	"spendboard/internal/dashboard"
	"spendboard/internal/editor"
	"spendboard/internal/ledger"
)

// currencies offered in the selector; the stored one is added when missing.
var currencies = []string{"€", "$", "£", "₹", "¥"}

var templateFuncs = template.FuncMap{
	"money": func(currency string, d decimal.Decimal) string {
		return core.FormatAmount(currency, d)
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

type txRow struct {
	ID       string
	Reason   string
	Amount   decimal.Decimal
	Type     string
	Category string
	Date     string
	Editing  bool
}

type totalRow struct {
	Type   string
	Amount decimal.Decimal
}

type pager struct {
	Number  int
	Count   int
	HasPrev bool
	HasNext bool
	Prev    int
	Next    int
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type formView struct {
	Editing   bool
	EditingID string
	Form      editor.Form
	Types     []option
}

type filtersView struct {
	Types      []option
	Category   string
	Months     []option
	Currencies []option
}

type boardView struct {
	Currency string
	Rows     []txRow
	Count    int
	Totals   []totalRow
	Pager    pager
	Banner   string
}

type dashboardPage struct {
	Title   string
	Board   boardView
	Filters filtersView
	Form    formView
}

type authPage struct {
	Title string
	Error string
	Email string
	Name  string
}

func newDashboardPage(snap dashboard.Snapshot) dashboardPage {
	return dashboardPage{
		Title:   "Dashboard",
		Board:   newBoardView(snap),
		Filters: newFiltersView(snap),
		Form:    newFormView(snap),
	}
}

func newBoardView(snap dashboard.Snapshot) boardView {
	v := snap.View
	rows := make([]txRow, 0, len(v.Page.Items))
	for _, tx := range v.Page.Items {
		rows = append(rows, txRow{
			ID:       tx.ID,
			Reason:   tx.Reason,
			Amount:   tx.Amount,
			Type:     string(tx.Type),
			Category: tx.Category,
			Date:     displayDate(tx.Date),
			Editing:  snap.Mode == editor.Editing && snap.EditingID == tx.ID,
		})
	}

	totals := make([]totalRow, 0, 3)
	for _, typ := range core.TxTypes() {
		totals = append(totals, totalRow{Type: string(typ), Amount: v.Totals.Of(typ)})
	}

	b := boardView{
		Currency: snap.Settings.Currency,
		Rows:     rows,
		Count:    len(v.Filtered),
		Totals:   totals,
		Pager:    newPager(v.Page),
	}
	if snap.LoadErr != nil {
		b.Banner = bannerMessage(snap.LoadErr)
	}
	return b
}

func newPager(p ledger.Page) pager {
	return pager{
		Number:  p.Number,
		Count:   p.Count,
		HasPrev: p.Number > 1,
		HasNext: p.Number < p.Count,
		Prev:    p.Number - 1,
		Next:    p.Number + 1,
	}
}

func newFiltersView(snap dashboard.Snapshot) filtersView {
	set := snap.Settings

	types := []option{{Value: ledger.TypeAll, Label: "All Types", Selected: set.FilterType == ledger.TypeAll}}
	for _, typ := range core.TxTypes() {
		types = append(types, option{Value: string(typ), Label: typeLabel(typ), Selected: set.FilterType == string(typ)})
	}

	months := make([]option, 0, len(snap.Months))
	for _, m := range snap.Months {
		months = append(months, option{Value: m.String(), Label: m.Label(), Selected: m == set.SelectedMonth})
	}

	return filtersView{
		Types:      types,
		Category:   set.FilterCategory,
		Months:     months,
		Currencies: currencyOptions(set.Currency),
	}
}

func newFormView(snap dashboard.Snapshot) formView {
	types := make([]option, 0, 3)
	for _, typ := range core.TxTypes() {
		types = append(types, option{Value: string(typ), Label: typeLabel(typ), Selected: snap.Form.Type == string(typ)})
	}
	return formView{
		Editing:   snap.Mode == editor.Editing,
		EditingID: snap.EditingID,
		Form:      snap.Form,
		Types:     types,
	}
}

func currencyOptions(selected string) []option {
	opts := make([]option, 0, len(currencies)+1)
	found := false
	for _, c := range currencies {
		opts = append(opts, option{Value: c, Label: c, Selected: c == selected})
		found = found || c == selected
	}
	if !found && selected != "" {
		opts = append(opts, option{Value: selected, Label: selected, Selected: true})
	}
	return opts
}

func displayDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02 Jan 2006")
}

func typeLabel(t core.TxType) string {
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}
