// Package session persists the per-browser settings and the auth token.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"spendboard/internal/core"
	"spendboard/internal/ledger"
	"spendboard/internal/storage"
)

// Store keys.
const (
	KeyToken          = "token"
	KeyFilterType     = "filterType"
	KeyFilterCategory = "filterCategory"
	KeySelectedMonth  = "selectedMonth"
	KeyCurrency       = "currency"
)

// Settings are the user choices restored on every visit.
type Settings struct {
	FilterType     string
	FilterCategory string
	SelectedMonth  core.Month
	Currency       string
}

// Defaults returns the settings of a first visit at now.
func Defaults(now time.Time, currency string) Settings {
	return Settings{
		FilterType:    ledger.TypeAll,
		SelectedMonth: core.MonthOf(now),
		Currency:      currency,
	}
}

// Filter is the ledger filter the settings describe.
func (s Settings) Filter() ledger.Filter {
	return ledger.Filter{Type: s.FilterType, Category: s.FilterCategory, Month: s.SelectedMonth}
}

// Session is the accessor for one browser's stored values.
type Session struct {
	store    storage.Store
	id       string
	currency string
	now      func() time.Time
}

func New(store storage.Store, id, defaultCurrency string) *Session {
	return &Session{store: store, id: id, currency: defaultCurrency, now: time.Now}
}

func (s *Session) ID() string {
	return s.id
}

// Load reads the settings. Missing or malformed values fall back to defaults.
func (s *Session) Load(ctx context.Context) (Settings, error) {
	set := Defaults(s.now(), s.currency)

	vals := make(map[string]string, 4)
	for _, key := range []string{KeyFilterType, KeyFilterCategory, KeySelectedMonth, KeyCurrency} {
		v, ok, err := s.store.Get(ctx, s.id, key)
		if err != nil {
			return set, fmt.Errorf("load settings: %w", err)
		}
		if ok {
			vals[key] = v
		}
	}

	if v, ok := vals[KeyFilterType]; ok && ledger.ValidType(v) {
		set.FilterType = v
	}
	if v, ok := vals[KeyFilterCategory]; ok {
		set.FilterCategory = v
	}
	if v, ok := vals[KeySelectedMonth]; ok {
		if m, err := core.ParseMonth(v); err == nil {
			set.SelectedMonth = m
		}
	}
	if v, ok := vals[KeyCurrency]; ok && strings.TrimSpace(v) != "" {
		set.Currency = v
	}
	return set, nil
}

// Save writes every setting.
func (s *Session) Save(ctx context.Context, set Settings) error {
	vals := [][2]string{
		{KeyFilterType, set.FilterType},
		{KeyFilterCategory, set.FilterCategory},
		{KeySelectedMonth, set.SelectedMonth.String()},
		{KeyCurrency, set.Currency},
	}
	for _, kv := range vals {
		if err := s.store.Set(ctx, s.id, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	return nil
}

// Token returns the stored token, empty when absent.
func (s *Session) Token(ctx context.Context) (string, error) {
	tok, _, err := s.store.Get(ctx, s.id, KeyToken)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return tok, nil
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("set token: empty token")
	}
	if err := s.store.Set(ctx, s.id, KeyToken, token); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *Session) ClearToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.id, KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// ValidToken returns the stored token when it is present and not expired.
// An expired token is removed.
func (s *Session) ValidToken(ctx context.Context) (string, bool, error) {
	tok, err := s.Token(ctx)
	if err != nil || tok == "" {
		return "", false, err
	}
	if TokenExpired(tok, s.now()) {
		if err := s.ClearToken(ctx); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return tok, true, nil
}

// TokenExpired reports whether a JWT's exp claim is at or before now. The
// signature is not checked; tokens that are not JWTs or carry no exp never
// expire here and are left for the backend to reject.
func TokenExpired(token string, now time.Time) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
