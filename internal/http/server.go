package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"spendboard/internal/api"
	"spendboard/internal/dashboard"
	"spendboard/internal/log"
	"spendboard/internal/middleware/ratelimit"
	"spendboard/internal/middleware/security"
	"spendboard/internal/middleware/trace"
	"spendboard/internal/storage"
	appweb "spendboard/web"
)

// Deps are the collaborators the server is built from.
type Deps struct {
	// API is the unauthenticated backend client; handlers derive per-token
	// copies from it.
	API      *api.Client
	Store    storage.Store
	Registry *dashboard.Registry

	DefaultCurrency string
	CookieSecure    bool
	SessionTTL      time.Duration
	TrustedProxies  []string

	Logger *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	api          *api.Client
	store        storage.Store
	registry     *dashboard.Registry
	currency     string
	cookieSecure bool
	sessionTTL   time.Duration

	logger           *log.Logger
	events           *log.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.API == nil || deps.Store == nil || deps.Registry == nil {
		return nil, errors.New("new server: api, store and registry are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 30 * 24 * time.Hour
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("new server: %w", err)
		}
	}
	s := &Server{
		templates:        t,
		api:              deps.API,
		store:            deps.Store,
		registry:         deps.Registry,
		currency:         deps.DefaultCurrency,
		cookieSecure:     deps.CookieSecure,
		sessionTTL:       deps.SessionTTL,
		logger:           logger,
		events:           log.NewStructuredLogger(deps.Logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		started:          time.Now(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)

	tagAuth := log.ComponentMiddleware(log.ComponentAuth)
	auth := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(tagAuth(h)))
	}
	auth("GET /login", s.handleLoginPage)
	auth("POST /login", s.handleLogin)
	auth("GET /register", s.handleRegisterPage)
	auth("POST /register", s.handleRegister)
	auth("POST /logout", s.handleLogout)

	tagUI := log.ComponentMiddleware(log.ComponentDashboard)
	ui := func(pattern string, h authedHandler) {
		mux.Handle(pattern, security.NoStore(tagUI(s.authed(h))))
	}
	ui("GET /dashboard", s.handleDashboard)
	ui("GET /ui/transactions", s.handleBoard)
	ui("POST /ui/filters", s.handleFilters)
	ui("GET /ui/page", s.handlePage)
	ui("POST /transactions", s.handleSubmitTransaction)
	ui("GET /transactions/{id}/edit", s.handleEditTransaction)
	ui("POST /transactions/cancel", s.handleCancelEdit)
	ui("DELETE /transactions/{id}", s.handleDeleteTransaction)
	ui("GET /export.csv", s.handleExport)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware([]string{http.MethodPost, http.MethodDelete}, detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware()(handler)
	handler = log.Middleware(deps.Logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	FailedMutation(http.StatusTooManyRequests, "Too many requests, try again in a minute").
		Header("Retry-After", "60").
		Send(w)
}

// render executes the named templates into one buffer. Nothing reaches the
// client on error.
func (s *Server) render(ctx context.Context, parts ...renderPart) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range parts {
		if err := s.templates.ExecuteTemplate(&buf, p.name, p.data); err != nil {
			s.logger.ErrorContext(ctx, "Template execution failed",
				"template", p.name,
				log.FieldError, err,
				log.FieldOperation, log.OpRender)
			return nil, fmt.Errorf("render %s: %w", p.name, err)
		}
	}
	return buf.Bytes(), nil
}

type renderPart struct {
	name string
	data any
}

func part(name string, data any) renderPart {
	return renderPart{name: name, data: data}
}

// writePage renders a full page with status.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, err := s.render(r.Context(), part(name, data))
	if err != nil {
		Internal("Could not render page").Send(w)
		return
	}
	Respond().Status(status).HTML(body).Send(w)
}

// redirect sends htmx requests an HX-Redirect and everything else a 303.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		Respond().Redirect(url).Send(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
