package http

import (
	"bytes"
	"errors"
	"net/http"

	"spendboard/internal/api"
	"spendboard/internal/core"
	"spendboard/internal/dashboard"
	"spendboard/internal/log"
)

var validationMessages = map[error]string{
	core.ErrEmptyReason:   "Reason is required",
	core.ErrInvalidAmount: "Amount must be a non-negative number",
	core.ErrInvalidType:   "Type must be spent, earned or investment",
	core.ErrInvalidDate:   "Date must be a valid YYYY-MM-DD date",
}

// handleSubmitTransaction creates or updates depending on the editor mode.
// The response swaps in a fresh form and updates the board out of band.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request, req *request) {
	ctx := r.Context()
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Send(w)
		return
	}

	_, editing := req.dash.Editing()
	op, notice := log.OpCreate, "Transaction added"
	if editing {
		op, notice = log.OpUpdate, "Transaction updated"
	}

	tx, err := req.dash.Submit(ctx, req.gw, ParseTransactionForm(r.PostForm))
	if err != nil {
		s.mutationFailed(w, r, req, op, err, "Could not save transaction")
		return
	}
	s.events.LogMutation(ctx, op, req.sess.ID(), tx)

	snap := req.dash.Snapshot()
	body, err := s.render(ctx,
		part("tx-form", newFormView(snap)),
		part("board-oob", newBoardView(snap)),
		part("filters-oob", newFiltersView(snap)),
	)
	if err != nil {
		Internal("Could not render transactions").Send(w)
		return
	}
	Respond().
		Success(notice).
		Changed(op, tx.ID).
		HTML(body).
		Send(w)
}

// handleEditTransaction loads a row into the form.
func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, req *request) {
	if err := req.dash.Edit(r.PathValue("id")); err != nil {
		FailedMutation(http.StatusNotFound, "Transaction not found").Send(w)
		return
	}
	s.writeForm(w, r, req)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request, req *request) {
	req.dash.CancelEdit()
	s.writeForm(w, r, req)
}

// handleDeleteTransaction deletes after confirmation. Without confirm=yes
// nothing is sent to the backend and nothing is swapped.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, req *request) {
	ctx := r.Context()
	id := r.PathValue("id")

	err := req.dash.Delete(ctx, req.gw, id, Confirmed(r))
	if errors.Is(err, dashboard.ErrDeleteDeclined) {
		Respond().Status(http.StatusNoContent).Reswap("none").Send(w)
		return
	}
	if err != nil {
		s.mutationFailed(w, r, req, log.OpDelete, err, "Could not delete transaction")
		return
	}
	s.events.LogMutation(ctx, log.OpDelete, req.sess.ID(), core.Transaction{ID: id})

	snap := req.dash.Snapshot()
	body, err := s.render(ctx,
		part("board", newBoardView(snap)),
		part("tx-form-oob", newFormView(snap)),
		part("filters-oob", newFiltersView(snap)),
	)
	if err != nil {
		Internal("Could not render transactions").Send(w)
		return
	}
	Respond().
		Success("Transaction deleted").
		Changed(log.OpDelete, id).
		HTML(body).
		Send(w)
}

// handleExport downloads the filtered collection as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, req *request) {
	var buf bytes.Buffer
	filename, err := req.dash.Export(&buf)
	if err != nil {
		s.events.LogError(r.Context(), "Export failed", err, log.ComponentDashboard, log.OpExport,
			log.NewFields().WithSession(req.sess.ID()))
		Internal("Could not export transactions").Send(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeForm(w http.ResponseWriter, r *http.Request, req *request) {
	body, err := s.render(r.Context(), part("tx-form", newFormView(req.dash.Snapshot())))
	if err != nil {
		Internal("Could not render form").Send(w)
		return
	}
	Respond().HTML(body).Send(w)
}

// mutationFailed reports a failed create, update or delete. The page is left
// as it was; a 401 logs the session out.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, req *request, op string, err error, fallback string) {
	if api.IsUnauthorized(err) {
		s.expireSession(w, r, req)
		return
	}
	for target, msg := range validationMessages {
		if errors.Is(err, target) {
			FailedMutation(http.StatusUnprocessableEntity, msg).Send(w)
			return
		}
	}

	status := http.StatusBadGateway
	var re *api.RequestError
	if errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500 {
		status = re.StatusCode
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Transaction mutation failed",
		log.FieldSessionID, req.sess.ID(),
		log.FieldOperation, op,
		log.FieldError, err,
		"error_type", log.ErrorTypeNetwork)
	FailedMutation(status, api.UserMessage(err, fallback)).Send(w)
}
