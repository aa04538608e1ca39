package host

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/drblury/operatorhost/discovery"
	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/handlers/builtin"
)

type countingRecorder struct {
	mu        sync.Mutex
	operators int
	endpoints int
	failures  int
	reloads   int
	setCalls  int
}

func (c *countingRecorder) SetRegistered(ops, eps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operators, c.endpoints = ops, eps
	c.setCalls++
}

func (c *countingRecorder) AddLoadFailures(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures += n
}

func (c *countingRecorder) IncReloads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads++
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithHandlers(handlers.New(builtin.Modules(nil)...)),
		WithClock(fixedClock()),
	}
	svc := New(append(base, opts...)...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestApplyToRequiresInitialize(t *testing.T) {
	svc := newService(t)
	if err := svc.ApplyTo(http.NewServeMux()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if svc.Initialized() {
		t.Fatal("service should not report initialized")
	}
	if string(svc.DocumentJSON()) != "{}" {
		t.Fatalf("unexpected document before initialize: %s", svc.DocumentJSON())
	}
}

func TestInitializeReturnsDirectoryErrors(t *testing.T) {
	svc := newService(t)
	err := svc.Initialize(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, discovery.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
	if svc.Initialized() {
		t.Fatal("failed initialize must not mark the service initialized")
	}
}

func TestInitializeRegistersAndCounts(t *testing.T) {
	root := operatorTree(t)
	writeFixture(t, filepath.Join(root, "broken", "bad.operator.yaml"), "info:\n  name: bad\n")

	rec := &countingRecorder{}
	svc := newService(t, WithRecorder(rec))
	if err := svc.Initialize(context.Background(), root); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	stats := svc.Stats()
	if stats.TotalOperators != 2 || stats.TotalEndpoints != 5 || stats.TotalCategories != 2 {
		t.Fatalf("unexpected registry stats: %+v", stats.Stats)
	}
	if !stats.Initialized || stats.InitializedAt == nil {
		t.Fatalf("expected initialized stats: %+v", stats)
	}
	if stats.LastScan.Discovered != 3 || stats.LastScan.Loaded != 2 || len(stats.LastScan.Failures) != 1 {
		t.Fatalf("unexpected scan summary: %+v", stats.LastScan)
	}
	if stats.SearchIndex != 2 {
		t.Fatalf("expected two indexed operators, got %d", stats.SearchIndex)
	}
	if rec.operators != 2 || rec.endpoints != 5 || rec.failures != 1 {
		t.Fatalf("unexpected recorder state: %+v", rec)
	}

	want := []string{"data-transform", "text-processing"}
	if diff := cmp.Diff(want, svc.Categories()); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestOperatorsSummaries(t *testing.T) {
	svc := newService(t)
	if err := svc.Initialize(context.Background(), operatorTree(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	ops := svc.OperatorsByCategory("text-processing")
	if len(ops) != 1 {
		t.Fatalf("expected one text operator, got %d", len(ops))
	}
	want := []string{
		"/api/text-processing/string-utils/broken",
		"/api/text-processing/string-utils/format",
		"/api/text-processing/string-utils/validate",
	}
	if diff := cmp.Diff(want, ops[0].Endpoints); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}
	if ops[0].EndpointCount != 3 || ops[0].ID != "text-processing/string-utils" {
		t.Fatalf("unexpected summary: %+v", ops[0])
	}
	if got := svc.OperatorsByCategory("missing"); len(got) != 0 {
		t.Fatalf("unknown category should be empty, got %d", len(got))
	}
	if got := len(svc.Operators()); got != 2 {
		t.Fatalf("expected two operators, got %d", got)
	}
}

func TestOperatorDefinitionExport(t *testing.T) {
	svc := newService(t)
	if err := svc.Initialize(context.Background(), operatorTree(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/operators/text-processing/string-utils/definition", nil)
	req.Host = "operators.internal:8080"
	def, err := svc.OperatorDefinition("text-processing/string-utils", req)
	if err != nil {
		t.Fatalf("definition: %v", err)
	}

	if def.Type != "operator-definition" || def.Version != "1.0.0" {
		t.Fatalf("unexpected header: %s %s", def.Type, def.Version)
	}
	op := def.Operator
	if op.Identifier != "string-utils" || op.Name != "String Utilities" || op.Author != "Operator Host" {
		t.Fatalf("unexpected operator block: %+v", op)
	}
	serverURL := op.Configuration["schema"].(map[string]any)["properties"].(map[string]any)["serverUrl"].(map[string]any)
	if serverURL["default"] != "http://operators.internal:8080" {
		t.Fatalf("unexpected server url default: %v", serverURL["default"])
	}
	if op.Metadata.OriginalOperatorID != "text-processing/string-utils" {
		t.Fatalf("unexpected metadata: %+v", op.Metadata)
	}

	identifiers := make([]string, 0, len(op.Methods))
	for _, m := range op.Methods {
		identifiers = append(identifiers, m.Identifier)
	}
	if diff := cmp.Diff([]string{"getbroken", "postformat", "validatevalue"}, identifiers); diff != "" {
		t.Fatalf("identifiers mismatch (-want +got):\n%s", diff)
	}

	broken, format, validate := op.Methods[0], op.Methods[1], op.Methods[2]
	if !broken.IsDefault || format.IsDefault || format.Order != 1 || format.Status != "ACTIVE" {
		t.Fatalf("unexpected ordering flags: %+v %+v", broken, format)
	}
	if format.Name != "Format text" || validate.Name != "validateValue" {
		t.Fatalf("unexpected method names: %q %q", format.Name, validate.Name)
	}
	if format.Configuration.Values.Endpoint != "/api/text-processing/string-utils/format" || format.Configuration.Values.Method != "POST" {
		t.Fatalf("unexpected method values: %+v", format.Configuration.Values)
	}

	wantInput := map[string]any{
		"type":       "object",
		"required":   []any{"input"},
		"properties": map[string]any{"input": map[string]any{"type": "string"}},
	}
	if diff := cmp.Diff(wantInput, format.InputSchema); diff != "" {
		t.Fatalf("input schema mismatch (-want +got):\n%s", diff)
	}
	if _, ok := format.OutputSchema["properties"].(map[string]any)["result"]; !ok {
		t.Fatalf("output schema not resolved: %v", format.OutputSchema)
	}
	if _, ok := validate.OutputSchema["properties"].(map[string]any)["valid"]; !ok {
		t.Fatalf("201 response schema not used: %v", validate.OutputSchema)
	}
	wantEmpty := map[string]any{"type": "object", "properties": map[string]any{}}
	if diff := cmp.Diff(wantEmpty, broken.OutputSchema); diff != "" {
		t.Fatalf("unresolvable reference should degrade (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantEmpty, validate.InputSchema); diff != "" {
		t.Fatalf("missing request body should degrade (-want +got):\n%s", diff)
	}

	// Exported schemas are copies.
	format.InputSchema["type"] = "mutated"
	again, err := svc.OperatorDefinition("text-processing/string-utils", nil)
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if again.Operator.Methods[1].InputSchema["type"] != "object" {
		t.Fatal("mutating an exported schema leaked into the registry")
	}
}

func TestOperatorDefinitionUnknown(t *testing.T) {
	svc := newService(t)
	if err := svc.Initialize(context.Background(), operatorTree(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := svc.OperatorDefinition("text-processing/nope", nil); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got %v", err)
	}
}

func TestRequestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{
			name:    "host header",
			prepare: func(r *http.Request) { r.Host = "api.local:9000" },
			want:    "http://api.local:9000",
		},
		{
			name: "forwarded headers",
			prepare: func(r *http.Request) {
				r.Header.Set("X-Forwarded-Proto", "https, http")
				r.Header.Set("X-Forwarded-Host", "operators.example.com")
			},
			want: "https://operators.example.com",
		},
		{
			name: "tls",
			prepare: func(r *http.Request) {
				r.TLS = &tls.ConnectionState{}
				r.Host = "secure.local"
			},
			want: "https://secure.local",
		},
		{
			name:    "fallback host",
			prepare: func(r *http.Request) { r.Host = "" },
			want:    "http://localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(r)
			if got := RequestBaseURL(r, "localhost:8080"); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	root := operatorTree(t)
	rec := &countingRecorder{}
	svc := newService(t, WithRecorder(rec))
	if err := svc.Initialize(context.Background(), root); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "data-transform", "json-transformer.operator.json")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(context.Background(), ""); err != nil {
		t.Fatalf("reload: %v", err)
	}

	stats := svc.Stats()
	if stats.TotalOperators != 1 || stats.LoadErrors != 0 {
		t.Fatalf("unexpected stats after reload: %+v", stats.Stats)
	}
	if rec.reloads != 1 || rec.operators != 1 {
		t.Fatalf("unexpected recorder state: %+v", rec)
	}
	if svc.Root() != root {
		t.Fatalf("reload should keep the root, got %q", svc.Root())
	}
	if doc := svc.Document(); doc.Paths.Value("/api/data-transform/json-transformer/filter") != nil {
		t.Fatal("document still lists the removed operator")
	}
}

func TestReloadPublishesOperatorsAtOnce(t *testing.T) {
	root := operatorTree(t)
	clock := fixedClock()

	var (
		svc       *Service
		reloading bool
		seen      []int
	)
	svc = newService(t, WithClock(func() time.Time {
		if reloading {
			seen = append(seen, svc.Registry().Stats().TotalOperators)
		}
		return clock()
	}))
	if err := svc.Initialize(context.Background(), root); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	reloading = true
	err := svc.Reload(context.Background(), "")
	reloading = false
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if len(seen) == 0 {
		t.Fatal("expected the clock to be read while reloading")
	}
	for i, n := range seen {
		if n != 2 {
			t.Fatalf("reading %d saw %d operators during reload, want 2 (all readings %v)", i, n, seen)
		}
	}
	if got := svc.Registry().Stats().TotalOperators; got != 2 {
		t.Fatalf("expected 2 operators after reload, got %d", got)
	}
}

func TestReloadConcurrentReadersSeeWholeSets(t *testing.T) {
	root := operatorTree(t)
	svc := newService(t)
	if err := svc.Initialize(context.Background(), root); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	done := make(chan struct{})
	bad := make(chan int, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if n := svc.Registry().Stats().TotalOperators; n != 2 {
				select {
				case bad <- n:
				default:
				}
				return
			}
		}
	}()

	for range 10 {
		if err := svc.Reload(context.Background(), ""); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("reload: %v", err)
		}
	}
	close(done)
	wg.Wait()

	select {
	case n := <-bad:
		t.Fatalf("reader observed a partial operator set of %d", n)
	default:
	}
}

func TestReloadMissingDirectoryKeepsState(t *testing.T) {
	root := operatorTree(t)
	rec := &countingRecorder{}
	svc := newService(t, WithRecorder(rec))
	if err := svc.Initialize(context.Background(), root); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	paths := svc.Document().Paths.InMatchingOrder()
	docJSON := string(svc.DocumentJSON())

	err := svc.Reload(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, discovery.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}

	if !svc.Initialized() {
		t.Fatal("expected the service to stay initialized")
	}
	if svc.Root() != root {
		t.Fatalf("root changed to %q", svc.Root())
	}
	if got := len(svc.Operators()); got != 2 {
		t.Fatalf("expected 2 operators to survive, got %d", got)
	}
	if diff := cmp.Diff(paths, svc.Document().Paths.InMatchingOrder()); diff != "" {
		t.Fatalf("document paths changed (-want +got):\n%s", diff)
	}
	if string(svc.DocumentJSON()) != docJSON {
		t.Fatal("document json changed")
	}
	if rec.reloads != 0 {
		t.Fatalf("failed reload should not be counted, got %d", rec.reloads)
	}
	if results, err := svc.Search(context.Background(), "merge", 5); err != nil || len(results) == 0 {
		t.Fatalf("expected search to keep working, got %v %v", results, err)
	}
}

func TestSearchReturnsSummaries(t *testing.T) {
	svc := newService(t)
	if err := svc.Initialize(context.Background(), operatorTree(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	results, err := svc.Search(context.Background(), "merge", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "data-transform/json-transformer" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
