package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapiMW "github.com/oapi-codegen/nethttp-middleware"

	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/responder"
)

// Mux is the part of *http.ServeMux the builder mounts operators on.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Source lists registered operators in mount order. *registry.Registry
// implements it.
type Source interface {
	All() []*operator.Registered
}

// Observer is told about every finished operator request.
type Observer interface {
	ObserveRequest(operatorID, method string, status int, duration time.Duration)
}

// DocumentFunc returns the aggregated OpenAPI document used for request
// validation.
type DocumentFunc func() *openapi3.T

// BuilderStats reports what the builder mounted.
type BuilderStats struct {
	RoutesCount    int `json:"routesCount"`
	OperatorsCount int `json:"operatorsCount"`
	Errors         int `json:"errors"`
	CachedHandlers int `json:"cachedHandlers"`
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// Builder mounts registered operators under /api/{category}/{name} and wraps
// them with request instrumentation.
type Builder struct {
	logger       *slog.Logger
	observer     Observer
	document     DocumentFunc
	responder    *responder.Responder
	cacheEnabled bool

	mu      sync.Mutex
	cache   map[string]http.Handler
	mounted map[Mux]map[string]struct{}
	stats   BuilderStats
}

// NewBuilder creates a Builder with the handler cache enabled.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		logger:       slog.Default(),
		cacheEnabled: true,
		cache:        make(map[string]http.Handler),
		mounted:      make(map[Mux]map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.responder == nil {
		b.responder = responder.NewResponder(responder.WithLogger(b.logger))
	}
	return b
}

// WithBuilderLogger sets the logger used for mount logs and request traces.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver feeds request timings to observer.
func WithObserver(observer Observer) BuilderOption {
	return func(b *Builder) {
		b.observer = observer
	}
}

// WithRequestValidation validates operator requests against the document
// returned by doc at mount time.
func WithRequestValidation(doc DocumentFunc) BuilderOption {
	return func(b *Builder) {
		b.document = doc
	}
}

// WithBuilderResponder sets the responder used for validation failures.
func WithBuilderResponder(resp *responder.Responder) BuilderOption {
	return func(b *Builder) {
		if resp != nil {
			b.responder = resp
		}
	}
}

// WithoutHandlerCache wraps operators anew on every mount.
func WithoutHandlerCache() BuilderOption {
	return func(b *Builder) {
		b.cacheEnabled = false
	}
}

// BasePath returns the mount path of an operator.
func BasePath(category, name string) string {
	if category == "" {
		category = operator.DefaultCategory
	}
	return "/api/" + category + "/" + name
}

// ApplyRoutes mounts every operator of src on mux. Base paths already
// mounted on mux are skipped, so after a reload the first handler mounted
// for a path keeps serving and operators that disappeared stay reachable
// until the process restarts. Operators without a handler and operators
// whose pattern conflicts with an existing one are skipped too.
func (b *Builder) ApplyRoutes(mux Mux, src Source) {
	ops := src.All()
	validate := b.validator()

	b.mu.Lock()
	defer b.mu.Unlock()

	mounted := b.mounted[mux]
	if mounted == nil {
		mounted = make(map[string]struct{})
		b.mounted[mux] = mounted
	}

	b.stats.OperatorsCount = len(ops)
	added, skipped := 0, 0
	for _, op := range ops {
		info := op.Info()
		basePath := BasePath(op.Category(), info.Name)

		if op.Handler == nil {
			b.logger.Warn("Operator has no routes, skipping.", "operator", op.ID)
			continue
		}
		if _, ok := mounted[basePath]; ok {
			skipped++
			b.logger.Debug("Operator already mounted, skipping.", "operator", op.ID, "path", basePath)
			continue
		}

		if err := mount(mux, basePath+"/", b.wrapped(op, basePath, validate)); err != nil {
			b.stats.Errors++
			b.logger.Error("Failed to mount operator.", "operator", op.ID, "path", basePath, "error", err)
			continue
		}
		mounted[basePath] = struct{}{}
		b.stats.RoutesCount++
		added++
		b.logger.Info("Operator mounted.", "operator", op.ID, "version", info.Version, "path", basePath)
	}

	b.logger.Info("Operator routes applied.",
		"mounted", added,
		"skipped", skipped,
		"total", b.stats.RoutesCount,
		"errors", b.stats.Errors,
	)
}

// Stats returns the builder counters.
func (b *Builder) Stats() BuilderStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.CachedHandlers = len(b.cache)
	return stats
}

// ClearCache drops every cached wrapper.
func (b *Builder) ClearCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = make(map[string]http.Handler)
}

func (b *Builder) wrapped(op *operator.Registered, basePath string, validate Middleware) http.Handler {
	key := op.ID + "@" + op.Info().Version
	if b.cacheEnabled {
		if h, ok := b.cache[key]; ok {
			return h
		}
	}

	var h http.Handler = http.StripPrefix(basePath, op.Handler)
	if validate != nil {
		h = validate(h)
	}
	h = instrument(op, h, b.logger, b.observer)

	if b.cacheEnabled {
		b.cache[key] = h
	}
	return h
}

func (b *Builder) validator() Middleware {
	if b.document == nil {
		return nil
	}
	doc := b.document()
	if doc == nil {
		return nil
	}
	mw, err := oapiMiddleware(doc, b.responder)
	if err != nil {
		b.logger.Error("Request validation disabled.", "error", err)
		return nil
	}
	return mw
}

// oapiMiddleware validates requests against a copy of doc whose servers are
// cleared, so validation does not depend on the host name the server runs
// under.
func oapiMiddleware(doc *openapi3.T, resp *responder.Responder) (mw Middleware, err error) {
	clone := *doc
	clone.Servers = nil

	validatorOptions := &oapiMW.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: func(c context.Context, input *openapi3filter.AuthenticationInput) error {
				return nil
			},
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			resp.HandleAPIError(w, nil, statusCode, responder.WithCode(fmt.Errorf("%s", message), "VALIDATION_ERROR"))
		},
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("build request validator: %v", rec)
		}
	}()
	return oapiMW.OapiRequestValidatorWithOptions(&clone, validatorOptions), nil
}

func mount(mux Mux, pattern string, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}
