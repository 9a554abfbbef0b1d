package http

import (
	"net/http"

	"github.com/google/uuid"

	"spendboard/internal/api"
	"spendboard/internal/dashboard"
	"spendboard/internal/log"
	"spendboard/internal/session"
)

// SessionCookie names the browser session id cookie.
const SessionCookie = "sid"

// browserSession returns the accessor for the caller's browser session,
// issuing a new id cookie when the request has none or a malformed one.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return session.New(s.store, id.String(), s.currency)
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return session.New(s.store, id, s.currency)
}

// request carries what every authenticated handler needs.
type request struct {
	sess *session.Session
	dash *dashboard.Dashboard
	gw   *api.Client
}

type authedHandler func(w http.ResponseWriter, r *http.Request, req *request)

// authed resolves the session, its token and its dashboard. Without a valid
// token the caller is sent to the login page.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := s.browserSession(w, r)

		token, ok, err := sess.ValidToken(ctx)
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Failed to read session token",
				log.FieldSessionID, sess.ID(),
				log.FieldError, err,
				"error_type", log.ErrorTypeDatabase)
			Internal("Session unavailable").Send(w)
			return
		}
		if !ok {
			s.registry.Forget(sess.ID())
			redirect(w, r, "/login")
			return
		}

		dash, err := s.registry.Get(ctx, sess.ID())
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Failed to load dashboard",
				log.FieldSessionID, sess.ID(),
				log.FieldError, err)
			Internal("Session unavailable").Send(w)
			return
		}

		h(w, r, &request{sess: sess, dash: dash, gw: s.api.WithToken(token)})
	}
}

// expireSession drops the token and the cached dashboard, then sends the
// caller to login. Used when the backend answers 401.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request, req *request) {
	ctx := r.Context()
	if err := req.sess.ClearToken(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to clear expired token", log.FieldSessionID, req.sess.ID(), log.FieldError, err)
	}
	s.registry.Forget(req.sess.ID())
	log.FromContext(ctx).InfoContext(ctx, "Backend rejected token, session logged out", log.FieldSessionID, req.sess.ID())
	redirect(w, r, "/login")
}
