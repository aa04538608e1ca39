package host

import (
	"log/slog"
	"time"

	"github.com/drblury/operatorhost/discovery"
	"github.com/drblury/operatorhost/docsgen"
	"github.com/drblury/operatorhost/router"
	"github.com/drblury/operatorhost/routes"
	"github.com/drblury/operatorhost/search"
)

// Recorder receives registry level measurements. *metrics.Prometheus
// implements it.
type Recorder interface {
	SetRegistered(operators, endpoints int)
	AddLoadFailures(n int)
	IncReloads()
}

type noopRecorder struct{}

func (noopRecorder) SetRegistered(int, int) {}
func (noopRecorder) AddLoadFailures(int)    {}
func (noopRecorder) IncReloads()            {}

// Option configures a Service.
type Option func(*settings)

type settings struct {
	logger         *slog.Logger
	handlers       routes.HandlerLookup
	recorder       Recorder
	observer       router.Observer
	defaultHost    string
	validate       bool
	cache          bool
	now            func() time.Time
	scannerOptions []discovery.Option
	docsOptions    []docsgen.Option
	searchOptions  []search.Option
	exportedBy     string
	defaultAuthor  string
}

func defaultSettings() *settings {
	return &settings{
		logger:        slog.Default(),
		recorder:      noopRecorder{},
		defaultHost:   "localhost:8080",
		cache:         true,
		now:           time.Now,
		exportedBy:    "Operator Host API",
		defaultAuthor: "Operator Host",
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHandlers sets where route binding files look up compiled-in handlers.
// *handlers.Catalog implements routes.HandlerLookup.
func WithHandlers(lookup routes.HandlerLookup) Option {
	return func(s *settings) {
		s.handlers = lookup
	}
}

// WithRecorder reports registry counters, load failures and reloads.
func WithRecorder(recorder Recorder) Option {
	return func(s *settings) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithObserver reports per-request timings of mounted operators.
func WithObserver(observer router.Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

// WithDefaultHost sets the host used for definition URLs when a request
// carries no Host header.
func WithDefaultHost(host string) Option {
	return func(s *settings) {
		if host != "" {
			s.defaultHost = host
		}
	}
}

// WithRequestValidation validates operator requests against the generated
// document.
func WithRequestValidation(enabled bool) Option {
	return func(s *settings) {
		s.validate = enabled
	}
}

// WithHandlerCache toggles the route builder handler cache.
func WithHandlerCache(enabled bool) Option {
	return func(s *settings) {
		s.cache = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScannerOptions passes options through to the discovery scanner.
func WithScannerOptions(opts ...discovery.Option) Option {
	return func(s *settings) {
		s.scannerOptions = append(s.scannerOptions, opts...)
	}
}

// WithDocsOptions passes options through to the docs generator.
func WithDocsOptions(opts ...docsgen.Option) Option {
	return func(s *settings) {
		s.docsOptions = append(s.docsOptions, opts...)
	}
}

// WithSearchOptions passes options through to the search index.
func WithSearchOptions(opts ...search.Option) Option {
	return func(s *settings) {
		s.searchOptions = append(s.searchOptions, opts...)
	}
}

// WithDefaultAuthor sets the author exported for operators that name none.
func WithDefaultAuthor(author string) Option {
	return func(s *settings) {
		if author != "" {
			s.defaultAuthor = author
		}
	}
}
