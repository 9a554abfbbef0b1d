package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Notice is the kind of toast shown by the show-notification listener.
type Notice string

const (
	NoticeSuccess Notice = "success"
	NoticeError   Notice = "error"
	NoticeWarning Notice = "warning"
	NoticeInfo    Notice = "info"
)

var noticeDuration = map[Notice]int{
	NoticeSuccess: 3000,
	NoticeInfo:    3000,
	NoticeWarning: 4000,
	NoticeError:   5000,
}

// Response collects status, headers, htmx events and body, and writes them
// in one go with Send.
type Response struct {
	status    int
	header    http.Header
	events    map[string]any
	afterSwap map[string]any
	body      []byte
}

func Respond() *Response {
	return &Response{
		status:    http.StatusOK,
		header:    http.Header{},
		events:    map[string]any{},
		afterSwap: map[string]any{},
	}
}

func (r *Response) Status(code int) *Response {
	r.status = code
	return r
}

// Event fires name with detail on the client as soon as the response arrives.
func (r *Response) Event(name string, detail any) *Response {
	r.events[name] = detail
	return r
}

// AfterSwap fires name once the new content is in the DOM.
func (r *Response) AfterSwap(name string, detail any) *Response {
	r.afterSwap[name] = detail
	return r
}

// Changed announces a create, update or delete of transaction id.
func (r *Response) Changed(action, id string) *Response {
	return r.AfterSwap("transaction:changed", map[string]string{"action": action, "id": id})
}

func (r *Response) Notify(kind Notice, message string) *Response {
	return r.Event("show-notification", map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": noticeDuration[kind],
	})
}

func (r *Response) Success(message string) *Response { return r.Notify(NoticeSuccess, message) }
func (r *Response) Failure(message string) *Response { return r.Notify(NoticeError, message) }

// Reswap overrides the caller's hx-swap; "none" leaves the page alone.
func (r *Response) Reswap(strategy string) *Response {
	return r.Header("HX-Reswap", strategy)
}

// Redirect makes htmx navigate the whole page to url.
func (r *Response) Redirect(url string) *Response {
	return r.Header("HX-Redirect", url)
}

func (r *Response) Header(name, value string) *Response {
	r.header.Set(name, value)
	return r
}

func (r *Response) HTML(body []byte) *Response {
	r.header.Set("Content-Type", "text/html; charset=utf-8")
	r.body = body
	return r
}

func (r *Response) Send(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range r.header {
		h[name] = values
	}
	setEvents(h, "HX-Trigger", r.events)
	setEvents(h, "HX-Trigger-After-Swap", r.afterSwap)

	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

func setEvents(h http.Header, key string, events map[string]any) {
	if len(events) == 0 {
		return
	}
	if b, err := json.Marshal(events); err == nil {
		h.Set(key, string(b))
	}
}

// Problem is a plain error fragment for non-htmx callers.
func Problem(status int, message string) *Response {
	return Respond().
		Status(status).
		HTML([]byte(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

// FailedMutation reports a failed htmx action as a toast and swaps nothing.
func FailedMutation(status int, message string) *Response {
	return Respond().Status(status).Reswap("none").Failure(message)
}

func Internal(message string) *Response {
	return Problem(http.StatusInternalServerError, message)
}
