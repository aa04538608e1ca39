package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/drblury/operatorhost/operator"
)

var (
	// ErrDirectoryNotFound is returned when the scan root is missing or is
	// not a directory.
	ErrDirectoryNotFound = errors.New("operators directory not found")
	// ErrAlreadyLoaded is returned by LoadOperator for a descriptor that was
	// already loaded since the last Reset.
	ErrAlreadyLoaded = errors.New("operator already loaded")
	// ErrNoRouteLoader is returned when the scanner has no way to load route
	// binding files.
	ErrNoRouteLoader = errors.New("no route loader configured")
)

// DefaultExcludes are directory and file names skipped during a scan, in
// addition to every dot-prefixed name.
var DefaultExcludes = []string{"node_modules", "vendor", "test", "tests", "testdata", "__test__"}

// RouteLoader loads a route binding file into a handler. *routes.Loader
// implements it.
type RouteLoader interface {
	Load(path string) (http.Handler, error)
}

// Failure records a descriptor that could not be loaded.
type Failure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Report summarises the last scan.
type Report struct {
	Root       string    `json:"root"`
	Discovered int       `json:"discovered"`
	Loaded     int       `json:"loaded"`
	Skipped    int       `json:"skipped"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Option configures a Scanner.
type Option func(*Scanner)

// Scanner discovers operators on disk.
type Scanner struct {
	logger   *slog.Logger
	loader   RouteLoader
	suffixes []string
	excludes map[string]struct{}
	root     string

	mu         sync.Mutex
	discovered map[string]struct{}
	last       Report
}

// NewScanner builds a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		logger:     slog.Default(),
		suffixes:   slices.Clone(operator.DefaultSuffixes),
		excludes:   toSet(DefaultExcludes),
		discovered: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRouteLoader sets the loader used for route binding files.
func WithRouteLoader(loader RouteLoader) Option {
	return func(s *Scanner) {
		s.loader = loader
	}
}

// WithSuffixes replaces the descriptor file suffixes.
func WithSuffixes(suffixes ...string) Option {
	return func(s *Scanner) {
		if len(suffixes) == 0 {
			return
		}
		s.suffixes = make([]string, 0, len(suffixes))
		for _, suffix := range suffixes {
			s.suffixes = append(s.suffixes, strings.ToLower(suffix))
		}
	}
}

// WithExcludes replaces the excluded names.
func WithExcludes(names ...string) Option {
	return func(s *Scanner) {
		s.excludes = toSet(names)
	}
}

// WithRoot fixes the directory categories are derived from. By default the
// directory passed to Scan is used.
func WithRoot(root string) Option {
	return func(s *Scanner) {
		s.root = root
	}
}

// Scan walks dir recursively and loads every descriptor found. Only a missing
// directory or a cancelled context is returned as an error.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]*operator.Loaded, error) {
	if err := CheckDir(dir); err != nil {
		return nil, err
	}

	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == "" {
		root = dir
	}

	report := Report{Root: dir}
	var loaded []*operator.Loaded

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Warn("Skipping unreadable path.", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != dir && s.Excluded(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.IsDescriptor(d.Name()) {
			return nil
		}

		report.Discovered++
		op, loadErr := s.load(path, root)
		switch {
		case loadErr == nil:
			report.Loaded++
			loaded = append(loaded, op)
		case errors.Is(loadErr, ErrAlreadyLoaded):
			report.Skipped++
		default:
			report.Failures = append(report.Failures, Failure{Path: path, Err: loadErr})
			s.logger.Error("Failed to load operator.", "path", path, "error", loadErr)
		}
		return nil
	})

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if walkErr != nil {
		return loaded, walkErr
	}

	s.logger.Info("Operator scan completed.",
		"root", dir,
		"discovered", report.Discovered,
		"loaded", report.Loaded,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return loaded, nil
}

// LoadOperator loads a single descriptor. Categories are derived relative to
// the configured root, or to the descriptor directory's parent when none is
// set.
func (s *Scanner) LoadOperator(path string) (*operator.Loaded, error) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == "" {
		root = filepath.Dir(filepath.Dir(path))
	}
	return s.load(path, root)
}

// CheckDir returns ErrDirectoryNotFound unless dir is an existing directory.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}
	return nil
}

// Reset forgets every previously loaded descriptor.
func (s *Scanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovered = make(map[string]struct{})
	s.last = Report{}
}

// LastScan returns the report of the most recent scan.
func (s *Scanner) LastScan() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	report := s.last
	report.Failures = slices.Clone(report.Failures)
	return report
}

func (s *Scanner) load(path, root string) (*operator.Loaded, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	s.mu.Lock()
	_, seen := s.discovered[abs]
	s.mu.Unlock()
	if seen {
		s.logger.Debug("Operator already loaded, skipping.", "path", abs)
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLoaded, abs)
	}

	desc, err := operator.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	category := desc.Info.Category
	if category == "" {
		category = categoryFromPath(root, abs)
		desc.Info.Category = category
	}

	routesPath := desc.Routes
	if !filepath.IsAbs(routesPath) {
		routesPath = filepath.Join(filepath.Dir(abs), routesPath)
	}
	if s.loader == nil {
		return nil, ErrNoRouteLoader
	}
	handler, err := s.loader.Load(routesPath)
	if err != nil {
		return nil, fmt.Errorf("load routes for %s: %w", desc.Info.Name, err)
	}

	s.mu.Lock()
	s.discovered[abs] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("Operator loaded.", "name", desc.Info.Name, "category", category, "path", abs)
	return &operator.Loaded{
		Descriptor: desc,
		Handler:    handler,
		Metadata: operator.Metadata{
			DescriptorPath: abs,
			RoutesPath:     routesPath,
			Category:       category,
			FileName:       filepath.Base(abs),
		},
	}, nil
}

// IsDescriptor reports whether name ends in one of the configured descriptor
// suffixes.
func (s *Scanner) IsDescriptor(name string) bool {
	return operator.HasSuffix(name, s.suffixes)
}

// Excluded reports whether a file or directory name is skipped by Scan.
func (s *Scanner) Excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := s.excludes[name]
	return ok
}

// categoryFromPath returns the first path segment of file below root, or ""
// when the file sits directly in root or outside of it.
func categoryFromPath(root, file string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absRoot, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
