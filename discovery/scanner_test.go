package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/routes"
)

type fileCheckLoader struct {
	calls int
}

func (l *fileCheckLoader) Load(path string) (http.Handler, error) {
	l.calls++
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return http.NotFoundHandler(), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func descriptorYAML(name string) string {
	return "info:\n  name: " + name + "\n  version: 1.0.0\nroutes: ./" + name + ".routes.hcl\nopenapi:\n  paths:\n    /run:\n      post:\n        summary: Run\n"
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestScanReturnsDirectoryNotFound(t *testing.T) {
	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))

	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	if _, err := s.Scan(context.Background(), file); !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound for a file, got %v", err)
	}
}

func TestCheckDir(t *testing.T) {
	if err := CheckDir(t.TempDir()); err != nil {
		t.Fatalf("expected existing directory to pass, got %v", err)
	}
	if err := CheckDir(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestScannerFileFilters(t *testing.T) {
	defaults := NewScanner()
	custom := NewScanner(WithSuffixes(".OP.yaml"), WithExcludes("fixtures"))

	tests := []struct {
		name       string
		s          *Scanner
		file       string
		descriptor bool
		excluded   bool
	}{
		{name: "default descriptor", s: defaults, file: "x.operator.yaml", descriptor: true},
		{name: "default exclude", s: defaults, file: "node_modules", excluded: true},
		{name: "hidden", s: defaults, file: ".git", excluded: true},
		{name: "custom suffix", s: custom, file: "x.op.yaml", descriptor: true},
		{name: "replaced suffix", s: custom, file: "x.operator.yaml"},
		{name: "custom exclude", s: custom, file: "fixtures", excluded: true},
		{name: "replaced exclude", s: custom, file: "node_modules"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.IsDescriptor(tt.file); got != tt.descriptor {
				t.Errorf("IsDescriptor(%q) = %v want %v", tt.file, got, tt.descriptor)
			}
			if got := tt.s.Excluded(tt.file); got != tt.excluded {
				t.Errorf("Excluded(%q) = %v want %v", tt.file, got, tt.excluded)
			}
		})
	}
}

func TestScanLoadsValidAndSkipsInvalid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "text-processing", "good.operator.yaml"), descriptorYAML("good"))
	writeFile(t, filepath.Join(root, "text-processing", "good.routes.hcl"), "")
	writeFile(t, filepath.Join(root, "broken", "bad.operator.yaml"), "info: {}\n")
	writeFile(t, filepath.Join(root, "README.md"), "not a descriptor")

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))
	loaded, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 operator, got %d", len(loaded))
	}

	op := loaded[0]
	if op.Descriptor.Info.Name != "good" {
		t.Fatalf("unexpected operator %q", op.Descriptor.Info.Name)
	}
	want := operator.Metadata{
		DescriptorPath: filepath.Join(root, "text-processing", "good.operator.yaml"),
		RoutesPath:     filepath.Join(root, "text-processing", "good.routes.hcl"),
		Category:       "text-processing",
		FileName:       "good.operator.yaml",
	}
	if diff := cmp.Diff(want, op.Metadata); diff != "" {
		t.Fatalf("unexpected metadata (-want +got):\n%s", diff)
	}
	if op.Descriptor.Info.Category != "text-processing" {
		t.Fatalf("expected category to be derived from directory, got %q", op.Descriptor.Info.Category)
	}

	report := s.LastScan()
	if report.Discovered != 2 || report.Loaded != 1 || len(report.Failures) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Failures[0].Path != filepath.Join(root, "broken", "bad.operator.yaml") {
		t.Fatalf("unexpected failure path %q", report.Failures[0].Path)
	}
	var verr *operator.ValidationError
	if !errors.As(report.Failures[0].Err, &verr) {
		t.Fatalf("expected validation error, got %v", report.Failures[0].Err)
	}
}

func TestScanSkipsExcludedAndHiddenEntries(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"node_modules", ".git", "test", ".hidden"} {
		writeFile(t, filepath.Join(root, dir, "x.operator.yaml"), descriptorYAML("x"))
		writeFile(t, filepath.Join(root, dir, "x.routes.hcl"), "")
	}
	writeFile(t, filepath.Join(root, "latest", "kept.operator.yaml"), descriptorYAML("kept"))
	writeFile(t, filepath.Join(root, "latest", "kept.routes.hcl"), "")
	writeFile(t, filepath.Join(root, "latest", ".draft.operator.yaml"), descriptorYAML("draft"))

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))
	loaded, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(loaded) != 1 || loaded[0].Descriptor.Info.Name != "kept" {
		t.Fatalf("expected only kept operator, got %d", len(loaded))
	}
}

func TestScanRespectsExplicitCategoryAndRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.operator.yaml"), descriptorYAML("top"))
	writeFile(t, filepath.Join(root, "top.routes.hcl"), "")
	writeFile(t, filepath.Join(root, "a", "b", "deep.operator.json"),
		`{"info":{"name":"deep","category":"explicit"},"routes":"deep.routes.hcl","openapi":{"paths":{"/x":{"get":{}}}}}`)
	writeFile(t, filepath.Join(root, "a", "b", "deep.routes.hcl"), "")

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))
	loaded, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	categories := map[string]string{}
	for _, op := range loaded {
		categories[op.Descriptor.Info.Name] = op.Metadata.Category
	}
	if diff := cmp.Diff(map[string]string{"top": "", "deep": "explicit"}, categories); diff != "" {
		t.Fatalf("unexpected categories (-want +got):\n%s", diff)
	}
}

func TestScanRecordsRouteLoadFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cat", "orphan.operator.yaml"), descriptorYAML("orphan"))

	loader := &fileCheckLoader{}
	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(loader))
	loaded, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(loaded) != 0 || len(s.LastScan().Failures) != 1 {
		t.Fatalf("expected route failure to be recorded, got %d loaded %+v", len(loaded), s.LastScan())
	}

	// The descriptor was not marked as loaded, so fixing the routes lets the
	// next scan pick it up without a Reset.
	writeFile(t, filepath.Join(root, "cat", "orphan.routes.hcl"), "")
	loaded, _ = s.Scan(context.Background(), root)
	if len(loaded) != 1 {
		t.Fatalf("expected operator after routes appear, got %d", len(loaded))
	}
}

func TestLoadOperatorDeduplicatesUntilReset(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "cat", "once.operator.yaml")
	writeFile(t, path, descriptorYAML("once"))
	writeFile(t, filepath.Join(root, "cat", "once.routes.hcl"), "")

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))

	first, err := s.LoadOperator(path)
	if err != nil || first == nil {
		t.Fatalf("expected first load to succeed, got %v", err)
	}
	if first.Metadata.Category != "cat" {
		t.Fatalf("expected category cat, got %q", first.Metadata.Category)
	}

	second, err := s.LoadOperator(path)
	if second != nil || !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("expected ErrAlreadyLoaded, got %v %v", second, err)
	}

	loaded, _ := s.Scan(context.Background(), root)
	if len(loaded) != 0 || s.LastScan().Skipped != 1 {
		t.Fatalf("expected scan to skip loaded operator, got %d %+v", len(loaded), s.LastScan())
	}

	s.Reset()
	third, err := s.LoadOperator(path)
	if err != nil || third == nil {
		t.Fatalf("expected load after reset to succeed, got %v", err)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cat", "a.operator.yaml"), descriptorYAML("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(&fileCheckLoader{}))
	if _, err := s.Scan(ctx, root); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanWithRouteFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "demo", "hello.operator.yaml"), descriptorYAML("hello"))
	writeFile(t, filepath.Join(root, "demo", "hello.routes.hcl"), `
route "POST" "/run" {
  body = "ran"
}
`)

	s := NewScanner(WithLogger(quietLogger()), WithRouteLoader(routes.NewLoader(nil)))
	loaded, err := s.Scan(context.Background(), root)
	if err != nil || len(loaded) != 1 {
		t.Fatalf("expected one operator, got %d (%v)", len(loaded), err)
	}

	rec := httptest.NewRecorder()
	loaded[0].Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "ran" {
		t.Fatalf("unexpected body %q", body)
	}
}
