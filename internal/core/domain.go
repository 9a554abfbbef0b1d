package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Spent      TxType = "spent"
	Earned     TxType = "earned"
	Investment TxType = "investment"
)

const dateLayout = "2006-01-02"

type (
	// TxType classifies a transaction. The set is closed.
	TxType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID       string          `json:"_id"`
		Reason   string          `json:"reason"`
		Amount   decimal.Decimal `json:"amount"`
		Type     TxType          `json:"type"`
		Category string          `json:"category"`
		Date     Date            `json:"date"`
	}

	// Draft is the validated payload sent to the backend on create and update.
	Draft struct {
		Reason   string          `json:"reason"`
		Amount   decimal.Decimal `json:"amount"`
		Type     TxType          `json:"type"`
		Category string          `json:"category"`
		Date     Date            `json:"date"`
	}
)

var (
	ErrEmptyReason   = errors.New("empty reason")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
)

// TxTypes returns the transaction types in display order.
func TxTypes() []TxType {
	return []TxType{Spent, Earned, Investment}
}

func (t TxType) Valid() bool {
	switch t {
	case Spent, Earned, Investment:
		return true
	default:
		return false
	}
}

func (t TxType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the calendar date of now.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts a plain YYYY-MM-DD date or an RFC 3339 timestamp, in which
// case the UTC calendar date is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// YearMonth truncates the date to its month.
func (d Date) YearMonth() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON accepts both "_id" and "id" for the server-assigned identifier.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var raw struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction(raw.plain)
	if t.ID == "" {
		t.ID = raw.AltID
	}
	return nil
}

// Month returns the year-month the transaction belongs to.
func (t Transaction) Month() Month {
	return t.Date.YearMonth()
}

// Draft returns the editable fields of the transaction.
func (t Transaction) Draft() Draft {
	return Draft{
		Reason:   t.Reason,
		Amount:   t.Amount,
		Type:     t.Type,
		Category: t.Category,
		Date:     t.Date,
	}
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Reason) == "" {
		return ErrEmptyReason
	}
	if d.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	return d.Date.Validate()
}
