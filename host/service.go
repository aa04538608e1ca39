package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/drblury/operatorhost/discovery"
	"github.com/drblury/operatorhost/docsgen"
	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/jsonutil"
	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/registry"
	"github.com/drblury/operatorhost/router"
	"github.com/drblury/operatorhost/routes"
	"github.com/drblury/operatorhost/search"
)

var (
	// ErrNotInitialized is returned by ApplyTo before Initialize succeeded.
	ErrNotInitialized = errors.New("operator host not initialized")
	// ErrOperatorNotFound is returned for unknown operator ids.
	ErrOperatorNotFound = errors.New("operator not found")
)

// state is replaced as a whole after every successful Initialize.
type state struct {
	root          string
	doc           *openapi3.T
	docJSON       []byte
	initializedAt time.Time
}

// Service coordinates the operator components.
type Service struct {
	cfg *settings

	registry  *registry.Registry
	scanner   *discovery.Scanner
	builder   *router.Builder
	generator *docsgen.Generator
	index     *search.Index

	mu    sync.Mutex
	state atomic.Pointer[state]
}

// New wires a Service. Without WithHandlers, route files can only declare
// static routes and proxies.
func New(opts ...Option) *Service {
	cfg := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.handlers == nil {
		cfg.handlers = handlers.New()
	}

	s := &Service{cfg: cfg}

	loader := routes.NewLoader(cfg.handlers, routes.WithLogger(cfg.logger))
	scannerOpts := append([]discovery.Option{
		discovery.WithLogger(cfg.logger),
		discovery.WithRouteLoader(loader),
	}, cfg.scannerOptions...)

	builderOpts := []router.BuilderOption{
		router.WithBuilderLogger(cfg.logger),
		router.WithObserver(cfg.observer),
	}
	if cfg.validate {
		builderOpts = append(builderOpts, router.WithRequestValidation(s.Document))
	}
	if !cfg.cache {
		builderOpts = append(builderOpts, router.WithoutHandlerCache())
	}

	s.registry = registry.New(registry.WithLogger(cfg.logger), registry.WithClock(cfg.now))
	s.scanner = discovery.NewScanner(scannerOpts...)
	s.builder = router.NewBuilder(builderOpts...)
	s.generator = docsgen.New(append([]docsgen.Option{docsgen.WithLogger(cfg.logger)}, cfg.docsOptions...)...)
	s.index = search.New(append([]search.Option{search.WithLogger(cfg.logger)}, cfg.searchOptions...)...)
	return s
}

// Initialize scans root and registers every operator found. Operators that
// fail to load or register are logged and counted. Only a missing directory
// or a cancelled context is returned.
func (s *Service) Initialize(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialize(ctx, root)
}

func (s *Service) initialize(ctx context.Context, root string) error {
	return s.load(ctx, root, s.registry.Clone())
}

// load scans root into staged and publishes staged together with the new
// document. Nothing visible changes when the scan fails.
func (s *Service) load(ctx context.Context, root string, staged *registry.Registry) error {
	logger := s.cfg.logger
	start := s.cfg.now()
	logger.Info("Initializing operator host.", "root", root)

	loaded, err := s.scanner.Scan(ctx, root)
	if err != nil {
		logger.Error("Operator scan failed.", "root", root, "error", err)
		return err
	}

	registered, failed := 0, 0
	for _, op := range loaded {
		if _, err := staged.Register(op); err != nil {
			failed++
			logger.Warn("Operator registration failed.", "path", op.Metadata.DescriptorPath, "error", err)
			continue
		}
		registered++
	}

	report := s.scanner.LastScan()
	failed += len(report.Failures)
	if registered == 0 {
		logger.Warn("No operators loaded.", "root", root, "failures", failed)
	}

	doc := s.generator.Generate(ctx, staged)
	docJSON, err := jsonutil.Marshal(doc)
	if err != nil {
		logger.Error("Failed to encode API document.", "error", err)
		docJSON = nil
	}

	if err := s.index.Rebuild(staged.All()); err != nil {
		logger.Warn("Failed to rebuild search index.", "error", err)
	}

	s.registry.Adopt(staged)
	s.state.Store(&state{
		root:          root,
		doc:           doc,
		docJSON:       docJSON,
		initializedAt: s.cfg.now(),
	})

	stats := s.registry.Stats()
	s.cfg.recorder.SetRegistered(stats.TotalOperators, stats.TotalEndpoints)
	if failed > 0 {
		s.cfg.recorder.AddLoadFailures(failed)
	}

	logger.Info("Operator host initialized.",
		"operators", stats.TotalOperators,
		"endpoints", stats.TotalEndpoints,
		"categories", stats.TotalCategories,
		"failures", failed,
		"duration", s.cfg.now().Sub(start),
	)
	return nil
}

// Reload replaces all operator state with a fresh scan of root. An empty root
// reuses the directory of the last Initialize. The new operators are staged
// and published in one step, so readers never observe a partly loaded set.
// When root cannot be scanned the previous state stays in place.
func (s *Service) Reload(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if root == "" {
		if st := s.state.Load(); st != nil {
			root = st.root
		}
	}
	s.cfg.logger.Info("Reloading operators.", "root", root)

	if err := discovery.CheckDir(root); err != nil {
		s.cfg.logger.Error("Reload skipped, previous operators kept.", "root", root, "error", err)
		return err
	}

	s.scanner.Reset()
	s.builder.ClearCache()
	s.cfg.recorder.IncReloads()

	staged := registry.New(registry.WithLogger(s.cfg.logger), registry.WithClock(s.cfg.now))
	return s.load(ctx, root, staged)
}

// ApplyTo mounts every registered operator on mux. Calling it again after a
// reload only mounts base paths that are new to mux. Handlers already mounted
// keep serving until the process restarts.
func (s *Service) ApplyTo(mux router.Mux) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	s.builder.ApplyRoutes(mux, s.registry)
	return nil
}

// Initialized reports whether Initialize has completed at least once.
func (s *Service) Initialized() bool {
	return s.state.Load() != nil
}

// Root returns the directory of the last successful Initialize.
func (s *Service) Root() string {
	if st := s.state.Load(); st != nil {
		return st.root
	}
	return ""
}

// Registry exposes the underlying registry for read access.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Document returns the aggregated OpenAPI document, or nil before Initialize.
// The returned document is shared and must not be modified.
func (s *Service) Document() *openapi3.T {
	if st := s.state.Load(); st != nil {
		return st.doc
	}
	return nil
}

// DocumentJSON returns the encoded aggregated document.
func (s *Service) DocumentJSON() []byte {
	if st := s.state.Load(); st != nil && st.docJSON != nil {
		return st.docJSON
	}
	return []byte("{}")
}

// Operators lists every registered operator.
func (s *Service) Operators() []OperatorSummary {
	return s.summaries(s.registry.All())
}

// OperatorsByCategory lists the operators of one category.
func (s *Service) OperatorsByCategory(category string) []OperatorSummary {
	return s.summaries(s.registry.ByCategory(category))
}

// Categories returns the categories in registration order.
func (s *Service) Categories() []string {
	return s.registry.Categories()
}

// Search runs a full text query over the registered operators.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		op, ok := s.registry.Get(hit.ID)
		if !ok {
			continue
		}
		results = append(results, SearchResult{OperatorSummary: summarize(op), Score: hit.Score})
	}
	return results, nil
}

// OperatorDefinition exports the operator id in the portable definition
// format. r supplies the base URL and may be nil.
func (s *Service) OperatorDefinition(id string, r *http.Request) (*Definition, error) {
	op, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, id)
	}
	baseURL := ""
	if r != nil {
		baseURL = RequestBaseURL(r, s.cfg.defaultHost)
	}
	return s.definition(op, baseURL), nil
}

// Stats combines registry, router and scan counters.
func (s *Service) Stats() Stats {
	stats := Stats{
		Stats:        s.registry.Stats(),
		BuilderStats: s.builder.Stats(),
		LastScan:     scanSummary(s.scanner.LastScan()),
		SearchIndex:  s.index.Len(),
	}
	if st := s.state.Load(); st != nil {
		stats.Initialized = true
		at := st.initializedAt
		stats.InitializedAt = &at
	}
	return stats
}

// Close releases the search index.
func (s *Service) Close() error {
	return s.index.Close()
}

func (s *Service) summaries(ops []*operator.Registered) []OperatorSummary {
	out := make([]OperatorSummary, 0, len(ops))
	for _, op := range ops {
		out = append(out, summarize(op))
	}
	return out
}
