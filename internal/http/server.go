package http

import (
	"context"
	"net/http"
	"time"

	"caixinha/internal/auth"
	"caixinha/internal/cache"
	"caixinha/internal/core"
	applog "caixinha/internal/log"
	"caixinha/internal/middleware/ratelimit"
	"caixinha/internal/middleware/security"
	"caixinha/internal/middleware/trace"
	"caixinha/internal/services"
)

// Options tunes the server; zero values pick defaults.
type Options struct {
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	Logger             *applog.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server
	ledger   *services.Ledger
	verifier *auth.Verifier
	now      func() time.Time

	// Summaries keyed by user and period; dropped per user on every write.
	summaries   *cache.LRUCache[core.Summary]
	summaryTTL  time.Duration
	provisioned *cache.LRUCache[bool]
	caches      *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.Ledger, verifier *auth.Verifier, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	s := &Server{
		ledger:      ledger,
		verifier:    verifier,
		now:         opts.Now,
		summaries:   cache.NewLRUCache[core.Summary](500, opts.SummaryCacheTTL),
		summaryTTL:  opts.SummaryCacheTTL,
		provisioned: cache.NewLRUCache[bool](10000, time.Hour),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			MutatingOnly:      true,
		}),
		detector: security.NewDetector(),
		tracer:   trace.NewMiddleware(),
	}
	s.caches = cache.NewManager(s.summaries, s.provisioned)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleRenameCategory)
	api.HandleFunc("PATCH /api/categories/{id}", s.handleRenameCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("GET /api/transactions/recent", s.handleRecentTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleReplaceTransaction)
	api.HandleFunc("PATCH /api/transactions/{id}", s.handlePatchTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/summary", s.handleSummary)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", verifier.Middleware(s.provision(api)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		Detail(http.StatusTooManyRequests, "Request was throttled. Please try again later.").Write(w)
	})

	var h http.Handler = mux
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = applog.Middleware(opts.Logger, trace.FromRequest, s.detector.ExtractClientIP)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// RunBackground sweeps caches and rate-limit state until ctx is done.
func (s *Server) RunBackground(ctx context.Context) {
	go s.limiter.Run(ctx)
	s.caches.Run(ctx, 10*time.Minute)
}

// provision records first sight of the authenticated user once per cache
// lifetime, which also makes sure the fallback category exists.
func (s *Server) provision(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.UserIDFromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, core.ErrNoOwner)
			return
		}
		if _, ok := s.provisioned.Get(user); !ok {
			if _, err := s.ledger.EnsureUser(r.Context(), user); err != nil {
				writeError(r.Context(), w, err)
				return
			}
			s.provisioned.Set(user, true)
		}
		next.ServeHTTP(w, r)
	})
}

func summaryKey(user string, year, month int) string {
	return "summary:" + user + ":" + core.FormatPeriod(year, month)
}

// invalidateSummaries drops user's cached summaries, or every user's when
// user is empty.
func (s *Server) invalidateSummaries(user string) {
	prefix := "summary:"
	if user != "" {
		prefix += user + ":"
	}
	s.summaries.DeletePrefix(prefix)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ready(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		Detail(http.StatusServiceUnavailable, "database unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
