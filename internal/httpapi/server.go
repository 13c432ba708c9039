package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/rickgao/asset-market/internal/auth"
	"github.com/rickgao/asset-market/internal/exchange"
	"github.com/rickgao/asset-market/internal/journal"
)

// CheckFunc reports the health of one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Server serves the HTTP API over an exchange.
type Server struct {
	ex       *exchange.Exchange
	authn    auth.Authenticator
	logger   *slog.Logger
	instance string
	currency string
	decimals int32

	feedPath string
	feed     http.Handler
	events   journal.EventLog

	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithInstance sets the instance id reported by /health.
func WithInstance(id string) Option {
	return func(s *Server) {
		s.instance = id
	}
}

// WithCurrency sets the settlement currency reported by /v1/collections.
func WithCurrency(name string, decimals int32) Option {
	return func(s *Server) {
		s.currency = name
		s.decimals = decimals
	}
}

// WithFeed mounts the event feed at path.
func WithFeed(path string, h http.Handler) Option {
	return func(s *Server) {
		s.feedPath = path
		s.feed = h
	}
}

// WithEventLog serves GET /v1/events from log.
func WithEventLog(log journal.EventLog) Option {
	return func(s *Server) {
		s.events = log
	}
}

// WithCheck adds a dependency to /health.
func WithCheck(name string, fn CheckFunc) Option {
	return func(s *Server) {
		s.checks[name] = fn
	}
}

// New creates a server. Mutations are attributed to the identity authn
// returns; reads are anonymous.
func New(ex *exchange.Exchange, authn auth.Authenticator, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ex:           ex,
		authn:        authn,
		logger:       logger,
		checks:       make(map[string]CheckFunc),
		checkTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.feed != nil {
		mux.Handle("GET "+s.feedPath, s.feed)
	}

	mux.HandleFunc("GET /v1/collections", s.snapshot(s.collections))
	mux.HandleFunc("POST /v1/collections/{collection}/assets", s.mutate(s.mint))
	mux.HandleFunc("GET /v1/collections/{collection}/assets/{id}", s.snapshot(s.asset))
	mux.HandleFunc("POST /v1/collections/{collection}/assets/{id}/transfer", s.mutate(s.transfer))
	mux.HandleFunc("POST /v1/collections/{collection}/assets/{id}/approve", s.mutate(s.approve))
	mux.HandleFunc("GET /v1/collections/{collection}/owners/{owner}", s.snapshot(s.owned))

	mux.HandleFunc("POST /v1/listings", s.mutate(s.list))
	mux.HandleFunc("GET /v1/listings", s.snapshot(s.activeListings))
	mux.HandleFunc("GET /v1/listings/{id}", s.snapshot(s.listing))
	mux.HandleFunc("POST /v1/listings/{id}/buy", s.mutate(s.buy))
	mux.HandleFunc("POST /v1/listings/{id}/cancel", s.mutate(s.cancel))

	mux.HandleFunc("POST /v1/accounts/{id}/deposit", s.mutate(s.deposit))
	mux.HandleFunc("POST /v1/accounts/{id}/withdraw", s.mutate(s.withdraw))
	mux.HandleFunc("GET /v1/accounts/{id}", s.query(s.account))

	if s.events != nil {
		mux.HandleFunc("GET /v1/events", s.query(s.listEvents))
	}

	return s.logRequests(mux)
}

func (s *Server) checkNames() []string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
