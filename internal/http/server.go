// Package http serves the local web UI: the dashboard and the labeling tool.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/netzema/fintrack/internal/cache"
	"github.com/netzema/fintrack/internal/classifier"
	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/events"
	applog "github.com/netzema/fintrack/internal/log"
	"github.com/netzema/fintrack/internal/storage"
	appweb "github.com/netzema/fintrack/web"
)

// Store is the slice of the transaction store the web UI reads and writes.
type Store interface {
	Get(ctx context.Context, id string) (core.Transaction, error)
	Insert(ctx context.Context, tx core.Transaction) (bool, error)
	SetCategory(ctx context.Context, id, category string) error
	Counterparties(ctx context.Context, limit int) ([]string, error)
	NextUnclassified(ctx context.Context) (*core.Transaction, error)
	ListUnclassified(ctx context.Context, limit int) ([]core.Transaction, error)
	CountUnclassified(ctx context.Context) (int, error)
	ListTransactions(ctx context.Context, f storage.TxFilter) ([]core.Transaction, error)
	Categories(ctx context.Context) ([]string, error)
	Months(ctx context.Context) ([]string, error)
	MonthlyFlows(ctx context.Context) ([]core.MonthFlow, error)
	CategorySums(ctx context.Context, yearMonth string, limit int) ([]core.CategoryAmount, error)
	CumulativeSpend(ctx context.Context, yearMonth string) ([]core.DayPoint, error)
	Summary(ctx context.Context) (core.Summary, error)
}

// Publisher announces labeling events. Nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, msg *events.Message) error
}

type Server struct {
	http.Server
	templates  *template.Template
	store      Store
	classifier *classifier.Classifier
	rulesPath  string
	publisher  Publisher
	budgets    map[string]int64

	writes  *writeLimiter
	httpLog *applog.StructuredLogger

	// dashboard query caches
	summaryCache *cache.TTL[core.Summary]
	flowsCache   *cache.TTL[[]core.MonthFlow]
	sweeper      *cache.Sweeper

	shutdownOnce sync.Once
}

// Options carries the optional server collaborators.
type Options struct {
	Publisher Publisher
	Budgets   map[string]int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, store Store, clf *classifier.Classifier, rulesPath string, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        store,
		classifier:   clf,
		rulesPath:    rulesPath,
		publisher:    opts.Publisher,
		budgets:      opts.Budgets,
		writes:       newWriteLimiter(),
		httpLog:      applog.NewStructuredLogger(applog.New(applog.Config{Component: applog.ComponentHTTP, Level: slog.LevelInfo})),
		summaryCache: cache.NewTTL[core.Summary](8, time.Minute),
		flowsCache:   cache.NewTTL[[]core.MonthFlow](8, time.Minute),
	}

	s.sweeper = cache.NewSweeper(s.summaryCache, s.flowsCache)
	s.sweeper.Start(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(template.FuncMap{"euros": formatEuros}).
		ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	// UI partials
	mux.HandleFunc("/ui/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/ui/month-flows", s.withSecurityHeaders(s.handleMonthFlows))
	mux.HandleFunc("/ui/categories", s.withSecurityHeaders(s.handleCategorySums))
	mux.HandleFunc("/ui/cumulative", s.withSecurityHeaders(s.handleCumulative))
	mux.HandleFunc("/ui/budgets", s.withSecurityHeaders(s.handleBudgets))
	mux.HandleFunc("/ui/transactions", s.withSecurityHeaders(s.handleTransactions))

	// labeling tool
	mux.HandleFunc("/labeler", s.withSecurityHeaders(s.handleLabeler))
	mux.HandleFunc("/labeler/assign", s.withSecurityHeaders(s.handleAssign))

	// manual entry
	mux.HandleFunc("/add", s.withSecurityHeaders(s.handleAddForm))
	mux.HandleFunc("/add/save", s.withSecurityHeaders(s.handleAddSave))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.sweeper.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		addr := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.httpLog.LogHTTPStart(ctx, r, addr)

		// rate limit writes only
		if r.Method == http.MethodPost && !s.writes.allow(addr) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", addr, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.httpLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), addr)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
