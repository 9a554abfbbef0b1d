package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(t *testing.T, h http.Header, key string) map[string]json.RawMessage {
	t.Helper()
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(h.Get(key)), &got), "%s is not JSON", key)
	return got
}

func TestResponseDefaults(t *testing.T) {
	w := httptest.NewRecorder()
	Respond().HTML([]byte("<p>ok</p>")).Send(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>ok</p>", w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("HX-Trigger"))
	assert.Empty(t, w.Header().Get("HX-Trigger-After-Swap"))
}

func TestResponseEvents(t *testing.T) {
	w := httptest.NewRecorder()
	Respond().
		Success("Transaction added").
		Changed("create", "abc").
		Send(w)

	now := events(t, w.Header(), "HX-Trigger")
	require.Contains(t, now, "show-notification")
	assert.JSONEq(t, `{"type":"success","message":"Transaction added","duration":3000}`, string(now["show-notification"]))
	assert.NotContains(t, now, "transaction:changed")

	later := events(t, w.Header(), "HX-Trigger-After-Swap")
	assert.JSONEq(t, `{"action":"create","id":"abc"}`, string(later["transaction:changed"]))
}

func TestFailedMutation(t *testing.T) {
	w := httptest.NewRecorder()
	FailedMutation(http.StatusUnprocessableEntity, "Reason is required").Send(w)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "none", w.Header().Get("HX-Reswap"))
	assert.Empty(t, w.Body.String())
	got := events(t, w.Header(), "HX-Trigger")
	assert.JSONEq(t, `{"type":"error","message":"Reason is required","duration":5000}`, string(got["show-notification"]))
}

func TestRedirectAndHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	Respond().Redirect("/login").Header("Retry-After", "60").Status(http.StatusTooManyRequests).Send(w)

	assert.Equal(t, "/login", w.Header().Get("HX-Redirect"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestProblemEscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	Internal(`<script>alert("x")</script>`).Send(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}
