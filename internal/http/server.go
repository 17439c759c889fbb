// Package http exposes the transaction, account and tag services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sfinapp/internal/cache"
	applog "sfinapp/internal/log"
	"sfinapp/internal/middleware/ratelimit"
	"sfinapp/internal/middleware/security"
	"sfinapp/internal/middleware/trace"
	"sfinapp/internal/services"
	"sfinapp/internal/storage"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChangeLog lists change notifications recorded by the worker.
type ChangeLog interface {
	ListChanges(ctx context.Context, resource string, limit int) ([]storage.ChangeEntry, error)
}

// Options wires the server's collaborators. Pinger, Changes and CacheStats
// may be nil; without Changes the change log route is not served.
type Options struct {
	Transactions *services.TransactionService
	Accounts     *services.AccountService
	Tags         *services.TagService
	Pinger       Pinger
	Changes      ChangeLog
	Logger       *applog.Logger

	RateLimitPerMinute int
	TrustedProxies     []string
	CacheStats         func() cache.Stats
}

type Server struct {
	http.Server
	transactions *services.TransactionService
	accounts     *services.AccountService
	tags         *services.TagService
	pinger       Pinger
	changes      ChangeLog
	logger       *applog.Logger

	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	cacheStats      func() cache.Stats
	started         time.Time

	shutdownOnce sync.Once
}

// NewServer builds the API server listening on addr. Call Shutdown to stop
// it together with the rate limiter's background cleanup.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	limiterConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		transactions:    opts.Transactions,
		accounts:        opts.Accounts,
		tags:            opts.Tags,
		pinger:          opts.Pinger,
		changes:         opts.Changes,
		logger:          logger,
		detector:        detector,
		rateLimiter:     ratelimit.NewLimiter(limiterConfig),
		traceMiddleware: trace.NewMiddleware(logger, detector.ExtractClientIP),
		cacheStats:      opts.CacheStats,
		started:         time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	limit := s.rateLimiter.Middleware(ratelimit.MutatingOnly, detector.ExtractClientIP, s.writeRateLimited)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limit(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
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
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transaction", s.handleListTransactions)
	mux.HandleFunc("POST /api/transaction", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/transaction/batch", s.handleCreateTransactionBatch)
	mux.HandleFunc("GET /api/transaction/descriptions", s.handleTransactionDescriptions)
	mux.HandleFunc("GET /api/transaction/skeleton", s.handleTransactionSkeleton)
	mux.HandleFunc("GET /api/transaction/version", s.handleTransactionVersion)
	mux.HandleFunc("GET /api/transaction/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transaction/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transaction/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/account", s.handleListAccounts)
	mux.HandleFunc("POST /api/account", s.handleCreateAccount)
	mux.HandleFunc("GET /api/account/version", s.handleAccountVersion)
	mux.HandleFunc("GET /api/account/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /api/account/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/account/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/tag", s.handleListTags)
	mux.HandleFunc("POST /api/tag", s.handleCreateTag)
	mux.HandleFunc("GET /api/tag/version", s.handleTagVersion)
	mux.HandleFunc("PUT /api/tag/{id}", s.handleUpdateTag)
	mux.HandleFunc("DELETE /api/tag/{id}", s.handleDeleteTag)

	if s.changes != nil {
		mux.HandleFunc("GET /api/changes", s.handleListChanges)
	}
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(retry))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
}
