package http

import (
	"errors"
	"net/http"

	"spendboard/internal/api"
	"spendboard/internal/log"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.browserSession(w, r)
	s.writePage(w, r, http.StatusOK, "login.html", authPage{Title: "Log in"})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.browserSession(w, r)
	s.writePage(w, r, http.StatusOK, "register.html", authPage{Title: "Create account"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.browserSession(w, r)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writePage(w, r, http.StatusBadRequest, "login.html", authPage{Title: "Log in", Error: "Malformed request"})
		return
	}
	page := authPage{Title: "Log in", Email: p.Get("email")}
	password := p.GetRaw("password")
	if page.Email == "" || password == "" {
		page.Error = "Email and password are required"
		s.writePage(w, r, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	token, err := s.api.Login(ctx, api.Credentials{Email: page.Email, Password: password})
	if err == nil {
		err = sess.SetToken(ctx, token)
	}
	s.events.LogAuth(ctx, log.OpLogin, sess.ID(), err)
	if err != nil {
		page.Error = api.UserMessage(err, "Login failed")
		s.writePage(w, r, authFailureStatus(err), "login.html", page)
		return
	}

	s.registry.Forget(sess.ID())
	redirect(w, r, "/dashboard")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.browserSession(w, r)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writePage(w, r, http.StatusBadRequest, "register.html", authPage{Title: "Create account", Error: "Malformed request"})
		return
	}
	page := authPage{Title: "Create account", Name: p.Get("name"), Email: p.Get("email")}
	password := p.GetRaw("password")
	if page.Name == "" || page.Email == "" || password == "" {
		page.Error = "Name, email and password are required"
		s.writePage(w, r, http.StatusUnprocessableEntity, "register.html", page)
		return
	}

	token, err := s.api.Register(ctx, api.Registration{Name: page.Name, Email: page.Email, Password: password})
	if err == nil {
		err = sess.SetToken(ctx, token)
	}
	s.events.LogAuth(ctx, log.OpRegister, sess.ID(), err)
	if err != nil {
		page.Error = api.UserMessage(err, "Registration failed")
		s.writePage(w, r, authFailureStatus(err), "register.html", page)
		return
	}

	s.registry.Forget(sess.ID())
	redirect(w, r, "/dashboard")
}

// handleLogout drops the token. Filter settings stay with the browser.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.browserSession(w, r)
	err := sess.ClearToken(ctx)
	s.events.LogAuth(ctx, log.OpLogout, sess.ID(), err)
	s.registry.Forget(sess.ID())
	redirect(w, r, "/login")
}

func authFailureStatus(err error) int {
	var re *api.RequestError
	switch {
	case errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500:
		return re.StatusCode
	case errors.Is(err, api.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
