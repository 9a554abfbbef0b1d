package http

import (
	"errors"
	"net/http"

	"spendboard/internal/api"
	"spendboard/internal/core"
	"spendboard/internal/dashboard"
	"spendboard/internal/log"
)

// handleDashboard renders the full page, loading the collection first.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, req *request) {
	if err := req.dash.Mount(r.Context(), req.gw); api.IsUnauthorized(err) {
		s.expireSession(w, r, req)
		return
	}
	s.writePage(w, r, http.StatusOK, "dashboard.html", newDashboardPage(req.dash.Snapshot()))
}

// handleBoard refetches and renders the list, totals and pager for the
// banner's Retry button.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request, req *request) {
	if err := req.dash.Refresh(r.Context(), req.gw); api.IsUnauthorized(err) {
		s.expireSession(w, r, req)
		return
	}
	s.writeBoard(w, r, req.dash.Snapshot())
}

// handleFilters applies the filter form; month, type and category changes
// return to page 1.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request, req *request) {
	ctx := r.Context()
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Send(w)
		return
	}

	set := req.dash.Settings()
	params, err := ParseFilterForm(r.PostForm, FilterParams{Filter: set.Filter(), Currency: set.Currency})
	if err == nil {
		err = req.dash.SetFilters(ctx, params.Filter, params.Currency)
	}
	switch {
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, dashboard.ErrInvalidFilter):
		FailedMutation(http.StatusUnprocessableEntity, "Invalid filter").Send(w)
		return
	case err != nil:
		// settings are applied in memory even when persisting them failed
		log.FromContext(ctx).WarnContext(ctx, "Failed to persist settings",
			log.FieldSessionID, req.sess.ID(),
			log.FieldError, err,
			"error_type", log.ErrorTypeDatabase)
	}

	s.writeBoard(w, r, req.dash.Snapshot())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request, req *request) {
	req.dash.SetPage(ParsePage(r.URL.Query()))
	s.writeBoard(w, r, req.dash.Snapshot())
}

func (s *Server) writeBoard(w http.ResponseWriter, r *http.Request, snap dashboard.Snapshot) {
	body, err := s.render(r.Context(), part("board", newBoardView(snap)))
	if err != nil {
		Internal("Could not render transactions").Send(w)
		return
	}
	Respond().HTML(body).Send(w)
}

func bannerMessage(err error) string {
	return api.UserMessage(err, "Could not load transactions")
}
