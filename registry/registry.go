package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drblury/operatorhost/operator"
)

var (
	// ErrNilOperator is returned when Register receives nothing to register.
	ErrNilOperator = errors.New("operator is nil")
	// ErrMissingName is returned for descriptors without info.name.
	ErrMissingName = errors.New("operator info.name is required")
	// ErrMissingPaths is returned for descriptors without openapi.paths.
	ErrMissingPaths = errors.New("operator openapi.paths is required")
)

// RegistrationError wraps the reason an operator was rejected.
type RegistrationError struct {
	Operator string
	Err      error
}

func (e *RegistrationError) Error() string {
	if e.Operator == "" {
		return "register operator: " + e.Err.Error()
	}
	return fmt.Sprintf("register operator %s: %v", e.Operator, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Endpoint is one method on one path declared by an operator.
type Endpoint struct {
	Key          string             `json:"key"`
	OperatorID   string             `json:"operatorId"`
	OperatorName string             `json:"operatorName"`
	Path         string             `json:"path"`
	Method       string             `json:"method"`
	Category     string             `json:"category"`
	Operation    operator.Operation `json:"-"`
}

// EndpointKey builds the endpoint index key id:path:METHOD.
func EndpointKey(id, path, method string) string {
	return id + ":" + path + ":" + strings.ToUpper(method)
}

// Stats summarises the registry.
type Stats struct {
	TotalOperators  int      `json:"totalOperators"`
	TotalEndpoints  int      `json:"totalEndpoints"`
	TotalCategories int      `json:"totalCategories"`
	LoadErrors      int      `json:"loadErrors"`
	Categories      []string `json:"categories"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the registration timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry stores operators by id. The zero value is not usable; use New.
type Registry struct {
	logger *slog.Logger
	now    func() time.Time

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.current.Store(newSnapshot())
	return r
}

// Register validates and stores op, replacing any operator with the same id.
// It returns the operator id.
func (r *Registry) Register(op *operator.Loaded) (string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := r.current.Load().clone()
	id, err := r.put(next, op)
	r.current.Store(next)
	return id, err
}

// Clone returns a registry holding the same operators and counters. Changes
// to the clone stay private until they are published with Adopt.
func (r *Registry) Clone() *Registry {
	c := &Registry{logger: r.logger, now: r.now}
	c.current.Store(r.current.Load())
	return c
}

// Adopt replaces the contents of r with those of staged in one step, so
// readers see either the old or the new operator set and never a mix.
func (r *Registry) Adopt(staged *Registry) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.current.Store(staged.current.Load())
	r.logger.Debug("Registry replaced.", "operators", len(staged.current.Load().operators))
}

// put validates op and records it in next, which must not be published yet.
// Rejections are counted in next.
func (r *Registry) put(next *snapshot, op *operator.Loaded) (string, error) {
	if err := validate(op); err != nil {
		next.loadErrors++
		name := ""
		if op != nil && op.Descriptor != nil {
			name = op.Descriptor.Info.Name
		}
		r.logger.Error("Operator registration rejected.", "operator", name, "error", err)
		return "", &RegistrationError{Operator: name, Err: err}
	}

	desc := *op.Descriptor
	if desc.Info.Category == "" {
		desc.Info.Category = operator.DefaultCategory
	}
	id := operator.ID(desc.Info.Category, desc.Info.Name)

	if _, replaced := next.operators[id]; replaced {
		for key, ep := range next.endpoints {
			if ep.OperatorID == id {
				delete(next.endpoints, key)
			}
		}
		r.logger.Info("Operator replaced.", "id", id)
	} else {
		next.order = append(next.order, id)
	}
	next.operators[id] = &operator.Registered{
		ID:           id,
		Descriptor:   &desc,
		Handler:      op.Handler,
		Metadata:     op.Metadata,
		RegisteredAt: r.now(),
	}

	added := 0
	for _, path := range desc.SortedPaths() {
		for _, method := range desc.Paths[path].SortedMethods() {
			key := EndpointKey(id, path, method)
			next.endpoints[key] = Endpoint{
				Key:          key,
				OperatorID:   id,
				OperatorName: desc.Info.Name,
				Path:         path,
				Method:       strings.ToUpper(method),
				Category:     desc.Info.Category,
				Operation:    desc.Paths[path][method],
			}
			added++
		}
	}
	next.categories = rebuildCategories(next)

	r.logger.Info("Operator registered.", "id", id, "version", desc.Info.Version, "endpoints", added)
	return id, nil
}

// Get returns the operator registered under id.
func (r *Registry) Get(id string) (*operator.Registered, bool) {
	op, ok := r.current.Load().operators[id]
	return op, ok
}

// Routes returns the route handler of the operator registered under id.
func (r *Registry) Routes(id string) (http.Handler, bool) {
	op, ok := r.Get(id)
	if !ok || op.Handler == nil {
		return nil, false
	}
	return op.Handler, true
}

// All returns every operator in registration order. The returned slice is
// shared until the next mutation.
func (r *Registry) All() []*operator.Registered {
	return r.current.Load().all()
}

// ByCategory returns the operators of one category in registration order.
func (r *Registry) ByCategory(category string) []*operator.Registered {
	return r.current.Load().byCategory(category)
}

// Categories lists known categories in first-seen order.
func (r *Registry) Categories() []string {
	return slices.Clone(r.current.Load().categories)
}

// Endpoints returns a copy of the endpoint index.
func (r *Registry) Endpoints() map[string]Endpoint {
	return maps.Clone(r.current.Load().endpoints)
}

// Endpoint looks up one endpoint by key.
func (r *Registry) Endpoint(key string) (Endpoint, bool) {
	ep, ok := r.current.Load().endpoints[key]
	return ep, ok
}

// EndpointsFor returns the endpoints of one operator ordered by path and
// method.
func (r *Registry) EndpointsFor(id string) []Endpoint {
	snap := r.current.Load()
	var out []Endpoint
	for _, ep := range snap.endpoints {
		if ep.OperatorID == id {
			out = append(out, ep)
		}
	}
	slices.SortFunc(out, func(a, b Endpoint) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return out
}

// Clear removes every operator and resets the counters.
func (r *Registry) Clear() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.current.Store(newSnapshot())
	r.logger.Debug("Registry cleared.")
}

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	snap := r.current.Load()
	return Stats{
		TotalOperators:  len(snap.operators),
		TotalEndpoints:  len(snap.endpoints),
		TotalCategories: len(snap.categories),
		LoadErrors:      snap.loadErrors,
		Categories:      slices.Clone(snap.categories),
	}
}

func validate(op *operator.Loaded) error {
	if op == nil || op.Descriptor == nil {
		return ErrNilOperator
	}
	if strings.TrimSpace(op.Descriptor.Info.Name) == "" {
		return ErrMissingName
	}
	if len(op.Descriptor.Paths) == 0 {
		return ErrMissingPaths
	}
	return nil
}

func rebuildCategories(s *snapshot) []string {
	categories := make([]string, 0, len(s.categories)+1)
	seen := make(map[string]struct{})
	for _, id := range s.order {
		c := s.operators[id].Category()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	return categories
}
