package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendboard/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestListSendsTokenAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"_id":"1","reason":"Rent","amount":900,"type":"spent","category":"Home","date":"2024-05-01T00:00:00.000Z"},
			{"id":"2","reason":"Salary","amount":"3000.00","type":"earned","date":"2024-05-28"}]`)
	})

	txs, err := c.WithToken("tok").List(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "1", txs[0].ID)
	assert.Equal(t, "2", txs[1].ID)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "2024-05", txs[0].Month().String())
}

func TestListEmptyBodyIsEmptySlice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	})
	txs, err := c.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestCreateUpdateDelete(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Lunch", body["reason"])
			assert.Equal(t, "12.5", body["amount"])
			assert.Equal(t, "2024-06-01", body["date"])
			_, _ = io.WriteString(w, `{"_id":"abc","reason":"Lunch","amount":12.5,"type":"spent","date":"2024-06-01"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c = c.WithToken("t")
	d := core.Draft{Reason: "Lunch", Amount: decimal.RequireFromString("12.5"), Type: core.Spent, Date: core.NewDate(2024, 6, 1)}

	tx, err := c.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "abc", tx.ID)

	_, err = c.Update(context.Background(), "abc", d)
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "abc"))
	assert.Equal(t, []string{"POST /transactions", "PUT /transactions/abc", "DELETE /transactions/abc"}, seen)
}

func TestRejectedRequestCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
	})

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, errors.Is(err, ErrNetwork))

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Equal(t, "Invalid credentials", UserMessage(err, "Login failed"))
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.List(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Could not load", UserMessage(err, "Could not load"))
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Contains(t, UserMessage(err, "Could not load"), "unreachable")
}

func TestLoginAndRegisterReturnToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/auth/login":
			assert.Equal(t, "a@b.c", body["email"])
			_, _ = io.WriteString(w, `{"token":"login-token"}`)
		case "/auth/register":
			assert.Equal(t, "Ann", body["name"])
			_, _ = io.WriteString(w, `{"token":"register-token"}`)
		}
	})

	tok, err := c.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "login-token", tok)

	tok, err = c.Register(context.Background(), Registration{Name: "Ann", Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "register-token", tok)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.Login(context.Background(), Credentials{})
	assert.Error(t, err)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("http://example.com/api")
	assert.NoError(t, err)
}
