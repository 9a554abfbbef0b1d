// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the transaction form, the filter form, pagination and auth payloads.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendboard/internal/core"
	"spendboard/internal/editor"
	"spendboard/internal/ledger"
)

const maxBodyBytes = 1 << 20

// ParseTransactionForm reads the editor fields. Values are sanitized but not
// validated; validation happens when the form becomes a draft.
func ParseTransactionForm(form url.Values) editor.Form {
	return editor.Form{
		Reason:   sanitizeInput(form.Get("reason")),
		Amount:   sanitizeInput(form.Get("amount")),
		Type:     sanitizeInput(form.Get("type")),
		Category: sanitizeInput(form.Get("category")),
		Date:     sanitizeInput(form.Get("date")),
	}
}

// FilterParams is the parsed filter form.
type FilterParams struct {
	Filter   ledger.Filter
	Currency string
}

// ParseFilterForm reads type, category, month and currency. Absent fields
// keep the current values; present but malformed ones are an error.
func ParseFilterForm(form url.Values, current FilterParams) (FilterParams, error) {
	out := current

	if _, ok := form["type"]; ok {
		typ := sanitizeInput(form.Get("type"))
		if typ == "" {
			typ = ledger.TypeAll
		}
		out.Filter.Type = typ
	}
	if _, ok := form["category"]; ok {
		out.Filter.Category = sanitizeInput(form.Get("category"))
	}
	if v, ok := form["month"]; ok && strings.TrimSpace(v[0]) != "" {
		m, err := core.ParseMonth(v[0])
		if err != nil {
			return current, err
		}
		out.Filter.Month = m
	}
	if v, ok := form["currency"]; ok && strings.TrimSpace(v[0]) != "" {
		out.Currency = sanitizeInput(v[0])
	}
	return out, nil
}

// ParsePage returns the 1-based page number from the query; missing or
// malformed values yield 1.
func ParsePage(query url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("page")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Confirmed reports whether the query carries confirm=yes. DELETE bodies are
// never parsed as forms.
func Confirmed(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("confirm")), "yes")
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to 1 MiB.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetRaw returns a value without trimming, for passwords.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab and newlines, and trims
// whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
func ParseFormOrFail(r *http.Request) *Response {
	if err := r.ParseForm(); err != nil {
		return FailedMutation(http.StatusBadRequest, "Malformed request")
	}
	return nil
}
