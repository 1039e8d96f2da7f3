package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"taschengeld/internal/auth"
	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/middleware/ratelimit"
	"taschengeld/internal/middleware/security"
	"taschengeld/internal/middleware/trace"
	"taschengeld/internal/services"
	appweb "taschengeld/web"
)

// Ledger is what the handlers need from the ledger service.
type Ledger interface {
	Overview(ctx context.Context) ([]core.ChildSummary, error)
	Account(ctx context.Context, id int64) (services.Account, error)
	GetChild(ctx context.Context, id int64) (core.Child, error)
	Deposit(ctx context.Context, id int64, amount core.Money, note string) (core.Transaction, error)
	Withdraw(ctx context.Context, id int64, amount core.Money, note string) (core.Transaction, error)
	CreateChild(ctx context.Context, c core.Child) (core.Child, error)
	UpdateChild(ctx context.Context, c core.Child) error
	Today() core.Date
	Location() *time.Location
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStats is implemented by the ledger cache.
type CacheStats interface {
	Size() int
	Stats() (hits, misses uint64)
}

type Deps struct {
	Ledger   Ledger
	Sessions *auth.Sessions
	Store    Pinger
	Cache    CacheStats
	Logger   *log.Logger
	// RateLimit overrides the limiter settings for form posts.
	RateLimit ratelimit.Config
}

type appMetrics struct {
	deposits    int64
	withdrawals int64
	rejected    int64
	uptime      time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    Ledger
	sessions  *auth.Sessions
	store     Pinger
	cache     CacheStats
	logger    *log.Logger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:     deps.Ledger,
		sessions:   deps.Sessions,
		store:      deps.Store,
		cache:      deps.Cache,
		logger:     logger,
		appMetrics: appMetrics{uptime: time.Now()},
	}

	t, err := parseTemplates(deps.Ledger.Location())
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	s.securityDetector = security.NewDetector(logger)
	s.rateLimiter = ratelimit.NewLimiter(deps.RateLimit)
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(time.Hour)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	parent := s.sessions.RequireParent

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /kinder/{id}", s.handleChild)
	mux.Handle("POST /kinder/{id}", parent(http.HandlerFunc(s.handleTransaction)))
	mux.Handle("GET /kinder/neu", parent(http.HandlerFunc(s.handleNewChildForm)))
	mux.Handle("POST /kinder/neu", parent(http.HandlerFunc(s.handleCreateChild)))
	mux.Handle("GET /kinder/{id}/bearbeiten", parent(http.HandlerFunc(s.handleEditChildForm)))
	mux.Handle("POST /kinder/{id}/bearbeiten", parent(http.HandlerFunc(s.handleUpdateChild)))

	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /api/kinder", s.handleAPIChildren)
	mux.HandleFunc("GET /api/kinder/{id}", s.handleAPIChild)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit, http.MethodPost)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Zu viele Anfragen. Bitte später erneut versuchen.").Write(w)
}

// Shutdown stops background goroutines and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) recordTransaction(intent string) {
	if intent == intentWithdraw {
		atomic.AddInt64(&s.appMetrics.withdrawals, 1)
		return
	}
	atomic.AddInt64(&s.appMetrics.deposits, 1)
}
