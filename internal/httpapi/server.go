package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MimeLyc/torznab-title-mapper/internal/indexer"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
)

type torznabProxy interface {
	Handle(ctx context.Context, params url.Values) (*indexer.Response, error)
}

type mappingLister interface {
	All() []mapping.Mapping
}

type reconciler interface {
	Reload(ctx context.Context, trigger string) (mapping.ReconcileRun, error)
	LastRun() (mapping.ReconcileRun, bool)
	RecentRuns(ctx context.Context, limit int) ([]mapping.ReconcileRun, error)
	CronExpr() string
}

// accessLogger receives one line per request.
type accessLogger interface {
	Print(format string, args ...interface{})
}

type Server struct {
	proxy      torznabProxy
	mappings   mappingLister
	reconciler reconciler
	accessLog  accessLogger
	now        func() time.Time

	router chi.Router
	server *http.Server
}

type Option func(*Server)

func WithAccessLog(l accessLogger) Option {
	return func(s *Server) {
		s.accessLog = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func NewServer(proxy torznabProxy, mappings mappingLister, rec reconciler, opts ...Option) *Server {
	s := &Server{
		proxy:      proxy,
		mappings:   mappings,
		reconciler: rec,
		now:        time.Now,
		router:     chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/torznab/api", s.handleTorznab)
	s.router.Get("/reload-mappings", s.handleReloadMappings)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/mappings", s.handleListMappings)
		r.Get("/status", s.handleStatus)
		r.Get("/reconcile/runs", s.handleReconcileRuns)
	})
}
