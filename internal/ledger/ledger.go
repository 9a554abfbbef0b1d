// Package ledger derives the dashboard views from a transaction collection.
//
// Every function here is pure: inputs are never mutated and the same inputs
// always produce the same outputs, so results may be memoized by the caller.
package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"spendboard/internal/core"
)

// PageSize is the number of transactions shown per page.
const PageSize = 10

// TypeAll is the type filter value that matches every transaction.
const TypeAll = "all"

// Filter narrows the visible transactions. All conditions must hold.
type Filter struct {
	// Type is TypeAll or one of the core transaction types. Empty means TypeAll.
	Type string
	// Category is matched as a case-insensitive substring; empty matches all.
	Category string
	Month    core.Month
}

// State is the complete input to Derive besides the collection.
type State struct {
	Filter Filter
	Page   int
}

// Totals holds per-type sums over a set of transactions.
type Totals struct {
	Spent      decimal.Decimal
	Earned     decimal.Decimal
	Investment decimal.Decimal
}

// Page is one slice of a filtered collection.
type Page struct {
	// Number is 1-based and always within [1, max(1, Count)].
	Number int
	Count  int
	Items  []core.Transaction
}

// View is everything the dashboard renders for one state.
type View struct {
	Filtered []core.Transaction
	Totals   Totals
	Page     Page
	Months   []core.Month
}

// ValidType reports whether s is an accepted type filter value.
func ValidType(s string) bool {
	return s == TypeAll || core.TxType(s).Valid()
}

// Match reports whether tx passes the type, category and month conditions.
func (f Filter) Match(tx core.Transaction) bool {
	if f.Type != "" && f.Type != TypeAll && string(tx.Type) != f.Type {
		return false
	}
	if f.Category != "" {
		if tx.Category == "" {
			return false
		}
		if !strings.Contains(strings.ToLower(tx.Category), strings.ToLower(f.Category)) {
			return false
		}
	}
	return tx.Month() == f.Month
}

// Apply returns the transactions matching f, keeping input order.
func Apply(txs []core.Transaction, f Filter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Summarize sums amounts by type. Transactions with an unknown type are ignored.
func Summarize(txs []core.Transaction) Totals {
	t := Totals{Spent: decimal.Zero, Earned: decimal.Zero, Investment: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case core.Spent:
			t.Spent = t.Spent.Add(tx.Amount)
		case core.Earned:
			t.Earned = t.Earned.Add(tx.Amount)
		case core.Investment:
			t.Investment = t.Investment.Add(tx.Amount)
		}
	}
	return t
}

// Of returns the total for one type.
func (t Totals) Of(typ core.TxType) decimal.Decimal {
	switch typ {
	case core.Spent:
		return t.Spent
	case core.Earned:
		return t.Earned
	case core.Investment:
		return t.Investment
	default:
		return decimal.Zero
	}
}

// PageCount is ceil(n / size).
func PageCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Paginate returns page number of txs. Out of range pages are clamped to the
// nearest valid page; an empty input yields page 1 of 0 with no items.
func Paginate(txs []core.Transaction, number, size int) Page {
	if size <= 0 {
		size = PageSize
	}
	count := PageCount(len(txs), size)
	last := count
	if last < 1 {
		last = 1
	}
	if number < 1 {
		number = 1
	}
	if number > last {
		number = last
	}
	start := (number - 1) * size
	end := start + size
	if start > len(txs) {
		start = len(txs)
	}
	if end > len(txs) {
		end = len(txs)
	}
	items := make([]core.Transaction, end-start)
	copy(items, txs[start:end])
	return Page{Number: number, Count: count, Items: items}
}

// Months lists the distinct months present in txs, ascending.
func Months(txs []core.Transaction) []core.Month {
	seen := make(map[core.Month]struct{}, len(txs))
	out := make([]core.Month, 0)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		m := tx.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Derive computes the full view for a collection and state.
func Derive(txs []core.Transaction, st State) View {
	filtered := Apply(txs, st.Filter)
	return View{
		Filtered: filtered,
		Totals:   Summarize(filtered),
		Page:     Paginate(filtered, st.Page, PageSize),
		Months:   Months(txs),
	}
}
