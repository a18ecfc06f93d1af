// Package http serves the REST API: auth gate, ledger, categories, stats,
// export and investments.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/invest"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Ledger is the ledger and category API.
type Ledger interface {
	ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Summary(ctx context.Context, dr core.DateRange) (core.Summary, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// Investments is the allocation engine API.
type Investments interface {
	Summary(ctx context.Context) (services.InvestmentSummary, error)
	ContributionPlan(ctx context.Context) (invest.Plan, error)
	Contributions(ctx context.Context) ([]invest.Contribution, error)
	ActionItems(ctx context.Context) ([]invest.ActionItem, error)
	UpdateConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error)
	AddContribution(ctx context.Context, c invest.Contribution) (invest.Contribution, error)
	SetHolding(ctx context.Context, asset string, value decimal.Decimal) (invest.Holding, error)
	StartPlan(ctx context.Context) (invest.PlanConfig, error)
}

// Auth is the login gate.
type Auth interface {
	VerifyEmail(ctx context.Context, email string) error
	VerifyPIN(ctx context.Context, email, pin string) (services.Session, error)
	Authenticate(ctx context.Context, token string) (*services.Claims, error)
	Logout(ctx context.Context, claims *services.Claims) error
}

// Pinger reports database readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr                   string
	AuthRateLimitPerMinute int
	Logger                 *log.Logger
}

type Server struct {
	http.Server
	ledger      Ledger
	investments Investments
	auth        Auth
	db          Pinger

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware into a ready to run http.Server.
func NewServer(opts Options, ledger Ledger, investments Investments, auth Auth, db Pinger) *Server {
	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		ledger:      ledger,
		investments: investments,
		auth:        auth,
		db:          db,
		logger:      logger,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AuthRateLimitPerMinute}),
		detector:    security.NewDetector(opts.Logger),
		now:         time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(opts.Logger, s.detector.ClientIP)
	reject := func(w http.ResponseWriter, r *http.Request) { writeError(w, http.StatusBadRequest, "Bad request") }

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(s.detector.Middleware(reject)(headers.Middleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limited := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Auth rate limit exceeded", log.FieldClientIP, s.detector.ClientIP(r))
		writeError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
	})
	mux.Handle("POST /api/auth/verify-email", limited(http.HandlerFunc(s.handleVerifyEmail)))
	mux.Handle("POST /api/auth/verify-pin", limited(http.HandlerFunc(s.handleVerifyPIN)))
	mux.Handle("POST /api/auth/logout", s.requireAuth(s.handleLogout))

	mux.Handle("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("GET /api/expenses/export", s.requireAuth(s.handleExportExpenses))
	mux.Handle("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.Handle("GET /api/categories", s.requireAuth(s.handleListCategories))
	mux.Handle("POST /api/categories", s.requireAuth(s.handleCreateCategory))
	mux.Handle("PUT /api/categories/{id}", s.requireAuth(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", s.requireAuth(s.handleDeleteCategory))

	mux.Handle("GET /api/stats/summary", s.requireAuth(s.handleStatsSummary))

	mux.Handle("GET /api/investments/summary", s.requireAuth(s.handleInvestmentSummary))
	mux.Handle("GET /api/investments/contribution-plan", s.requireAuth(s.handleContributionPlan))
	mux.Handle("GET /api/investments/contributions", s.requireAuth(s.handleListContributions))
	mux.Handle("POST /api/investments/contributions", s.requireAuth(s.handleAddContribution))
	mux.Handle("GET /api/investments/action-items", s.requireAuth(s.handleActionItems))
	mux.Handle("PUT /api/investments/config", s.requireAuth(s.handleUpdateConfig))
	mux.Handle("PUT /api/investments/holdings/{type}", s.requireAuth(s.handleSetHolding))
	mux.Handle("POST /api/investments/start-plan", s.requireAuth(s.handleStartPlan))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// Shutdown stops background work and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
