// Package editor tracks whether the transaction form creates a new record or
// edits an existing one, and turns raw form input into a validated draft.
package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendboard/internal/core"
)

// Mode is the editor state.
type Mode int

const (
	Creating Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "creating"
}

// Form holds the raw field values as typed by the user.
type Form struct {
	Reason   string
	Amount   string
	Type     string
	Category string
	Date     string
}

// Gateway is the subset of the record gateway the editor submits to.
type Gateway interface {
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Update(ctx context.Context, id string, d core.Draft) (core.Transaction, error)
}

// DefaultForm is the empty form: type spent, date today.
func DefaultForm(now time.Time) Form {
	return Form{Type: string(core.Spent), Date: core.Today(now).String()}
}

// FormFrom populates a form from an existing transaction.
func FormFrom(tx core.Transaction) Form {
	return Form{
		Reason:   tx.Reason,
		Amount:   tx.Amount.String(),
		Type:     string(tx.Type),
		Category: tx.Category,
		Date:     tx.Date.String(),
	}
}

// Draft validates the form and converts it into a draft.
func (f Form) Draft() (core.Draft, error) {
	reason := strings.TrimSpace(f.Reason)
	if reason == "" {
		return core.Draft{}, core.ErrEmptyReason
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Draft{}, err
	}
	typ := core.TxType(strings.TrimSpace(f.Type))
	if !typ.Valid() {
		return core.Draft{}, core.ErrInvalidType
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Draft{}, err
	}
	d := core.Draft{
		Reason:   reason,
		Amount:   amount,
		Type:     typ,
		Category: strings.TrimSpace(f.Category),
		Date:     date,
	}
	return d, d.Validate()
}

// Editor is the create/edit state machine. It is not safe for concurrent use;
// the owning dashboard serializes access.
type Editor struct {
	mode      Mode
	editingID string
	form      Form
	now       func() time.Time
}

// New returns an editor in the Creating state with a default form.
func New(now func() time.Time) *Editor {
	if now == nil {
		now = time.Now
	}
	return &Editor{mode: Creating, form: DefaultForm(now()), now: now}
}

func (e *Editor) Mode() Mode {
	return e.mode
}

// EditingID is the id of the record being edited, or "" while creating.
func (e *Editor) EditingID() string {
	return e.editingID
}

func (e *Editor) Form() Form {
	return e.form
}

// Edit enters Editing for tx and loads its values into the form.
func (e *Editor) Edit(tx core.Transaction) {
	e.mode = Editing
	e.editingID = tx.ID
	e.form = FormFrom(tx)
}

// Cancel abandons any edit and resets the form.
func (e *Editor) Cancel() {
	e.reset()
}

func (e *Editor) reset() {
	e.mode = Creating
	e.editingID = ""
	e.form = DefaultForm(e.now())
}

// Submit validates f and sends it through gw: Create while creating,
// Update while editing. On success the editor returns to Creating with a
// default form. On failure mode, target and the submitted form are kept.
func (e *Editor) Submit(ctx context.Context, f Form, gw Gateway) (core.Transaction, error) {
	e.form = f
	draft, err := f.Draft()
	if err != nil {
		return core.Transaction{}, err
	}

	var (
		tx core.Transaction
		op string
	)
	if e.mode == Editing {
		op = "update"
		tx, err = gw.Update(ctx, e.editingID, draft)
	} else {
		op = "create"
		tx, err = gw.Create(ctx, draft)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%s transaction: %w", op, err)
	}

	e.reset()
	return tx, nil
}
