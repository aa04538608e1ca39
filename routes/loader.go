package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

var (
	// ErrNoRoutes is returned for route files without route or proxy blocks.
	ErrNoRoutes = errors.New("route file declares no routes")
	// ErrUnknownHandler is returned when a route names a handler that is not
	// in the catalog.
	ErrUnknownHandler = errors.New("unknown handler")
)

// HandlerLookup resolves handler names. *handlers.Catalog implements it.
type HandlerLookup interface {
	Lookup(name string) (http.Handler, bool)
}

// Option configures a Loader.
type Option func(*Loader)

// Loader turns route binding files into http.Handlers.
type Loader struct {
	handlers HandlerLookup
	logger   *slog.Logger
}

// NewLoader builds a Loader resolving handlers through lookup.
func NewLoader(lookup HandlerLookup, opts ...Option) *Loader {
	l := &Loader{handlers: lookup, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// WithLogger sets the logger used by the loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Load parses the file at path and builds a handler that serves every route
// it declares. Requests reach the handler with the operator base path
// already stripped.
func (l *Loader) Load(path string) (http.Handler, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return l.Build(f)
}

// Build assembles the handler for an already decoded file.
func (l *Loader) Build(f *File) (http.Handler, error) {
	mux := http.NewServeMux()
	for _, r := range f.Routes {
		h, err := l.routeHandler(r)
		if err != nil {
			return nil, err
		}
		if err := handle(mux, r.pattern(), h); err != nil {
			return nil, err
		}
	}
	for _, p := range f.Proxies {
		target, err := url.Parse(p.Upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("proxy %s: invalid upstream %q", p.Prefix, p.Upstream)
		}
		if err := handle(mux, p.Prefix, l.proxy(target)); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (l *Loader) routeHandler(r *Route) (http.Handler, error) {
	if r.Handler != nil {
		if l.handlers == nil {
			return nil, fmt.Errorf("route %s %s: %w %q", r.Method, r.Path, ErrUnknownHandler, *r.Handler)
		}
		h, ok := l.handlers.Lookup(*r.Handler)
		if !ok {
			return nil, fmt.Errorf("route %s %s: %w %q", r.Method, r.Path, ErrUnknownHandler, *r.Handler)
		}
		return h, nil
	}
	return staticHandler(r), nil
}

func (l *Loader) proxy(target *url.URL) http.Handler {
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		l.logger.WarnContext(r.Context(), "upstream request failed", "upstream", target.String(), "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return rp
}

func staticHandler(r *Route) http.Handler {
	status := http.StatusOK
	if r.Status != nil {
		status = *r.Status
	}
	contentType := "text/plain; charset=utf-8"
	if r.ContentType != nil {
		contentType = *r.ContentType
	}
	var body []byte
	if r.Body != nil {
		body = []byte(*r.Body)
	}
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

// handle registers h on mux, turning the pattern conflict panic of
// http.ServeMux into an error.
func handle(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("register %q: %v", pattern, rec)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}
