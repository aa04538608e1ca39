package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/operatorhost/responder"
)

const defaultTimeout = 30 * time.Second

// Middleware wraps an http.Handler to produce a new http.Handler.
type Middleware func(http.Handler) http.Handler

// Stage names one of the built-in layers of the outer chain.
type Stage string

const (
	StageRecovery  Stage = "recovery"
	StageCORS      Stage = "cors"
	StageTimeout   Stage = "timeout"
	StageAccessLog Stage = "access-log"
)

// Option configures New.
type Option func(*chain)

type chain struct {
	cfg       Config
	logger    *slog.Logger
	responder *responder.Responder
	outer     []Middleware
	inner     []Middleware
	skip      map[Stage]bool
}

// WithConfig replaces the chain configuration. A zero Timeout keeps the
// 30 second default; use Without(StageTimeout) to run without one.
func WithConfig(cfg Config) Option {
	cfg = cfg.clone()
	return func(c *chain) {
		if cfg.Timeout == 0 {
			cfg.Timeout = c.cfg.Timeout
		}
		c.cfg = cfg
	}
}

// WithLogger sets the logger used for access logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResponder sets the responder that renders recovered panics.
func WithResponder(resp *responder.Responder) Option {
	return func(c *chain) {
		c.responder = resp
	}
}

// WithMiddlewares adds middlewares outside the built-in stages. The first one
// sees the request first.
func WithMiddlewares(mw ...Middleware) Option {
	return func(c *chain) {
		c.outer = append(c.outer, mw...)
	}
}

// WithInnerMiddlewares adds middlewares between the built-in stages and the
// wrapped handler.
func WithInnerMiddlewares(mw ...Middleware) Option {
	return func(c *chain) {
		c.inner = append(c.inner, mw...)
	}
}

// Without disables built-in stages.
func Without(stages ...Stage) Option {
	return func(c *chain) {
		for _, s := range stages {
			c.skip[s] = true
		}
	}
}

// New wraps h with, from the outside in: custom outer middlewares, panic
// recovery, CORS, the request timeout, access logging and custom inner
// middlewares.
func New(h http.Handler, opts ...Option) http.Handler {
	if h == nil {
		panic("router: handler cannot be nil")
	}

	c := &chain{
		cfg:    Config{Timeout: defaultTimeout},
		logger: slog.Default(),
		skip:   make(map[Stage]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.responder == nil {
		c.responder = responder.NewResponder(responder.WithLogger(c.logger))
	}

	return wrap(h, c.middlewares())
}

func (c *chain) middlewares() []Middleware {
	mws := make([]Middleware, 0, len(c.outer)+len(c.inner)+4)
	mws = append(mws, c.outer...)
	if !c.skip[StageRecovery] {
		mws = append(mws, recoverPanics(c.responder))
	}
	if !c.skip[StageCORS] && len(c.cfg.CORS.Origins) > 0 {
		mws = append(mws, allowCORS(c.cfg.CORS))
	}
	if !c.skip[StageTimeout] && c.cfg.Timeout > 0 {
		mws = append(mws, limitDuration(c.cfg.Timeout))
	}
	if !c.skip[StageAccessLog] {
		mws = append(mws, logRequests(c.logger, c.cfg.QuietdownRoutes, c.cfg.HideHeaders))
	}
	return append(mws, c.inner...)
}

func wrap(h http.Handler, mws []Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
