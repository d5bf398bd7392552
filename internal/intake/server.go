package intake

import (
	"context"
	"net/http"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/middleware"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CompletionNotifier is told about transactions completed through the API so
// the owner hears about it in chat.
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, t *models.Transaction)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Addr      string
	JWTSecret string
	Matcher   *services.Matcher
	Ledger    *services.Ledger
	Limiter   *middleware.RateLimiter
	Metrics   *metrics.LedgerMetrics
	Notifier  CompletionNotifier
}

// Server accepts provider notifications relayed from the receiving phones and
// exposes the operator endpoints around them.
type Server struct {
	cfg      Config
	validate *validator.Validate
	router   http.Handler
	srv      *http.Server
	now      func() time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.router = s.buildRouter()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(withRequestID)
	r.Use(chimw.Recoverer)
	if s.cfg.Limiter != nil {
		r.Use(s.cfg.Limiter.LimitByIP)
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/sms", func(api chi.Router) {
		api.Use(s.observe)
		api.Group(func(relay chi.Router) {
			relay.Use(s.requireScope(scopeSMS))
			relay.Post("/receive", s.receive)
			relay.Post("/bulk_receive", s.bulkReceive)
			relay.Get("/test_parse", s.testParse)
		})
		api.Group(func(admin chi.Router) {
			admin.Use(s.requireScope(scopeAdmin))
			admin.Post("/manual_verify", s.manualVerify)
			admin.Get("/pending_transactions", s.pendingTransactions)
			admin.Get("/unmatched", s.unmatched)
		})
	})
	return r
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Intake server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down intake server")
	return s.srv.Shutdown(shutdownCtx)
}

// observe records one sample per request, labelled by the matched route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.cfg.Metrics.ObserveIntake(route, http.StatusText(status), time.Since(start))
		logger.Debug("Intake request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"took", time.Since(start),
		)
	})
}
