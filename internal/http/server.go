package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
	appweb "expensetracker/web"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the HTTP API. Metrics and DB may be nil.
type Deps struct {
	Users        *services.UserService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Reports      *services.ReportService
	Classifier   *services.ClassifierService
	Issuer       *auth.Issuer
	DB           Pinger
	Metrics      *metrics.Metrics
	Logger       *log.Logger
}

type Server struct {
	http.Server
	deps      Deps
	templates *template.Template
	limiter   *ratelimit.Limiter
	started   time.Time

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		started: time.Now(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	authed := auth.Middleware(s.deps.Issuer)

	handle := func(pattern, route string, h http.HandlerFunc, protected bool) {
		var handler http.Handler = h
		if protected {
			handler = authed(handler)
		}
		if s.deps.Metrics != nil {
			handler = s.deps.Metrics.Instrument(route, handler)
		}
		mux.Handle(pattern, handler)
	}

	handle("GET /{$}", "/", s.handleIndex, false)
	handle("GET /healthz", "/healthz", s.handleHealth, false)
	handle("GET /readyz", "/readyz", s.handleReady, false)
	handle("POST /register", "/register", s.handleRegister, false)
	handle("POST /login", "/login", s.handleLogin, false)

	handle("POST /transactions", "/transactions", s.handleCreateTransaction, true)
	handle("GET /transactions", "/transactions", s.handleListTransactions, true)
	handle("POST /budget", "/budget", s.handleUpsertBudget, true)
	handle("GET /budget/status", "/budget/status", s.handleBudgetStatus, true)
	handle("POST /budget/check-alerts", "/budget/check-alerts", s.handleCheckAlerts, true)

	handle("GET /report/monthly", "/report/monthly", s.handleMonthlyReport, true)
	handle("GET /report/category", "/report/category", s.handleCategoryReport, true)
	handle("GET /predict", "/predict", s.handlePredict, true)
	handle("GET /report/dashboard", "/report/dashboard", s.handleDashboard, true)
	handle("GET /report", "/report", s.handleReportPage, false)

	handle("POST /classifier/retrain", "/classifier/retrain", s.handleRetrain, true)
	handle("GET /classifier/predict", "/classifier/predict", s.handleClassifierPredict, true)

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", log.FieldComponent, log.ComponentHTTP, log.FieldError, err)
	}

	ips := security.NewClientIPResolver()
	var rec ratelimit.Recorder
	if s.deps.Metrics != nil {
		rec = s.deps.Metrics
	}

	// Outermost first.
	var h http.Handler = mux
	h = s.limiter.Middleware(ips.ClientIP, s.rateLimited, rec)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.Middleware(ips.ClientIP)(h)
	h = log.Middleware(s.deps.Logger.WithComponent(log.ComponentHTTP))(h)
	return h
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Expense Tracker API running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and the classifier. An uninitialized
// classifier is reported but does not fail readiness: it loads on first use.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{}

	if s.deps.DB == nil {
		checks["database"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.DB.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.deps.Classifier != nil {
		checks["classifier"] = s.deps.Classifier.State().String()
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
