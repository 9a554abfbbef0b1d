package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendboard/internal/core"
)

type fakeGateway struct {
	created []core.Draft
	updated map[string]core.Draft
	err     error
}

func (f *fakeGateway) Create(_ context.Context, d core.Draft) (core.Transaction, error) {
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	f.created = append(f.created, d)
	return core.Transaction{ID: "new", Reason: d.Reason}, nil
}

func (f *fakeGateway) Update(_ context.Context, id string, d core.Draft) (core.Transaction, error) {
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	if f.updated == nil {
		f.updated = map[string]core.Draft{}
	}
	f.updated[id] = d
	return core.Transaction{ID: id, Reason: d.Reason}, nil
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
}

func TestNewStartsCreatingWithDefaults(t *testing.T) {
	e := New(fixedClock)
	if e.Mode() != Creating || e.EditingID() != "" {
		t.Fatalf("expected creating, got %v %q", e.Mode(), e.EditingID())
	}
	want := Form{Type: "spent", Date: "2024-06-15"}
	if e.Form() != want {
		t.Fatalf("form = %+v, want %+v", e.Form(), want)
	}
}

func TestSubmitCreate(t *testing.T) {
	e := New(fixedClock)
	gw := &fakeGateway{}
	_, err := e.Submit(context.Background(), Form{Reason: " Lunch ", Amount: "12,50", Type: "spent", Category: "Food", Date: "2024-06-14"}, gw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(gw.created) != 1 || len(gw.updated) != 0 {
		t.Fatalf("expected one create, got created=%d updated=%d", len(gw.created), len(gw.updated))
	}
	d := gw.created[0]
	if d.Reason != "Lunch" || !d.Amount.Equal(decimal.RequireFromString("12.5")) || d.Date.String() != "2024-06-14" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if e.Mode() != Creating || e.Form() != DefaultForm(fixedClock()) {
		t.Fatalf("expected reset form after create, got %+v", e.Form())
	}
}

func TestEditThenSubmitUpdatesAndResets(t *testing.T) {
	e := New(fixedClock)
	gw := &fakeGateway{}
	rec := core.Transaction{ID: "r1", Reason: "Salary", Amount: decimal.NewFromInt(3000), Type: core.Earned, Category: "Job", Date: core.NewDate(2024, 5, 31)}

	e.Edit(rec)
	if e.Mode() != Editing || e.EditingID() != "r1" {
		t.Fatalf("expected editing r1, got %v %q", e.Mode(), e.EditingID())
	}
	f := e.Form()
	if f.Reason != "Salary" || f.Amount != "3000" || f.Type != "earned" || f.Category != "Job" || f.Date != "2024-05-31" {
		t.Fatalf("form not populated from record: %+v", f)
	}

	f.Amount = "3100"
	if _, err := e.Submit(context.Background(), f, gw); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(gw.created) != 0 {
		t.Fatalf("edit submit must not create")
	}
	if d, ok := gw.updated["r1"]; !ok || !d.Amount.Equal(decimal.NewFromInt(3100)) {
		t.Fatalf("expected update of r1, got %+v", gw.updated)
	}
	if e.Mode() != Creating || e.EditingID() != "" {
		t.Fatalf("expected creating after update, got %v %q", e.Mode(), e.EditingID())
	}
	want := Form{Reason: "", Amount: "", Type: "spent", Category: "", Date: "2024-06-15"}
	if e.Form() != want {
		t.Fatalf("form = %+v, want %+v", e.Form(), want)
	}
}

func TestSubmitFailureKeepsState(t *testing.T) {
	e := New(fixedClock)
	rec := core.Transaction{ID: "r1", Reason: "Rent", Amount: decimal.NewFromInt(900), Type: core.Spent, Date: core.NewDate(2024, 6, 1)}
	e.Edit(rec)

	boom := errors.New("boom")
	gw := &fakeGateway{err: boom}
	f := e.Form()
	f.Reason = "Rent June"
	if _, err := e.Submit(context.Background(), f, gw); !errors.Is(err, boom) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if e.Mode() != Editing || e.EditingID() != "r1" || e.Form().Reason != "Rent June" {
		t.Fatalf("state should be kept on failure: %v %q %+v", e.Mode(), e.EditingID(), e.Form())
	}
}

func TestSubmitInvalidFormSkipsGateway(t *testing.T) {
	cases := []struct {
		form Form
		want error
	}{
		{Form{Reason: "", Amount: "1", Type: "spent", Date: "2024-01-01"}, core.ErrEmptyReason},
		{Form{Reason: "x", Amount: "", Type: "spent", Date: "2024-01-01"}, core.ErrInvalidAmount},
		{Form{Reason: "x", Amount: "-4", Type: "spent", Date: "2024-01-01"}, core.ErrInvalidAmount},
		{Form{Reason: "x", Amount: "4", Type: "gift", Date: "2024-01-01"}, core.ErrInvalidType},
		{Form{Reason: "x", Amount: "4", Type: "earned", Date: ""}, core.ErrInvalidDate},
	}
	for i, tc := range cases {
		e := New(fixedClock)
		gw := &fakeGateway{}
		if _, err := e.Submit(context.Background(), tc.form, gw); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
		if len(gw.created) != 0 {
			t.Fatalf("case %d: gateway must not be called", i)
		}
	}
}

func TestCancel(t *testing.T) {
	e := New(fixedClock)
	e.Edit(core.Transaction{ID: "x", Reason: "a", Type: core.Spent, Date: core.NewDate(2024, 1, 1)})
	e.Cancel()
	if e.Mode() != Creating || e.EditingID() != "" || e.Form() != DefaultForm(fixedClock()) {
		t.Fatalf("cancel should reset the editor")
	}
}
