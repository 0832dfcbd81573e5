package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
	applog "github.com/Daler-web-dev/hisbbot/internal/log"
	"github.com/Daler-web-dev/hisbbot/internal/middleware/ratelimit"
	"github.com/Daler-web-dev/hisbbot/internal/middleware/security"
	"github.com/Daler-web-dev/hisbbot/internal/middleware/trace"
)

// Ledger is the subset of *ledger.Service the API uses.
type Ledger interface {
	Dashboard(ctx context.Context, externalID int64, period, today string) (core.Dashboard, error)
	Stats(ctx context.Context, externalID int64, q ledger.StatsQuery) (core.Stats, error)
	ListTransactions(ctx context.Context, externalID int64, q ledger.ListQuery) (ledger.TransactionPage, error)
	CreateTransaction(ctx context.Context, in ledger.CreateTransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, externalID int64, id string) error
	Categories(ctx context.Context, externalID int64) ([]core.Category, error)
	EnsureCategory(ctx context.Context, externalID int64, name, typ string) (core.Category, error)
}

// UpdateHandler processes Telegram updates; *telegram.Handler implements it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Pinger reports database health for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr   string
	Ledger Ledger
	// Bot enables the webhook endpoint when set.
	Bot                UpdateHandler
	DB                 Pinger
	WebhookSecret      string
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Now is the clock for period-based stats; nil uses time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	ledger        Ledger
	bot           UpdateHandler
	db            Pinger
	webhookSecret string
	now           func() time.Time

	rateLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		ledger:        opts.Ledger,
		bot:           opts.Bot,
		db:            opts.DB,
		webhookSecret: opts.WebhookSecret,
		now:           now,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:        trace.NewMiddleware(logger.WithComponent(applog.ComponentTrace), security.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/stats", s.handleStats)
	mux.HandleFunc("/api/transactions/{id}", s.handleTransaction)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})

	onLimit := func(w http.ResponseWriter, r *http.Request) { TooManyRequestsError().Write(w) }

	// Telegram delivers every user's updates from a few addresses, so the
	// webhook sits outside the per-IP limit and relies on its secret.
	root := http.NewServeMux()
	root.Handle("/", s.rateLimiter.Middleware(security.ClientIP, onLimit, http.MethodPost, http.MethodDelete)(mux))
	if s.bot != nil {
		root.HandleFunc("/api/webhook/telegram", s.handleWebhook)
	}

	var handler http.Handler = root
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger, trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
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

// Metrics reports request counters for the access log middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}
