package builtin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/jsonutil"
	"github.com/drblury/operatorhost/responder"
)

func newCatalog() *handlers.Catalog {
	resp := responder.NewResponder(responder.WithLogger(slog.New(slog.DiscardHandler)))
	return handlers.New(Text{Responder: resp}, JSONTransform{Responder: resp})
}

func call(t *testing.T, c *handlers.Catalog, name, body string) (int, map[string]any) {
	t.Helper()

	h, ok := c.Lookup(name)
	if !ok {
		t.Fatalf("handler %s not registered", name)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	var env map[string]any
	if err := jsonutil.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode body: %v (body: %s)", err, rec.Body.String())
	}
	return rec.Code, env
}

func TestFormat(t *testing.T) {
	c := newCatalog()

	tests := []struct {
		name   string
		body   string
		result string
		steps  []any
	}{
		{name: "default trims", body: `{"input":"  hello world  "}`, result: "hello world", steps: []any{"trim"}},
		{name: "title", body: `{"input":"  hello world  ","options":{"case":"title"}}`, result: "Hello World", steps: []any{"trim", "title-case"}},
		{name: "upper without trim", body: `{"input":" ab ","options":{"case":"upper","trim":false}}`, result: " AB ", steps: []any{"uppercase"}},
		{name: "lower", body: `{"input":"ABC","options":{"case":"lower"}}`, result: "abc", steps: []any{"trim", "lowercase"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := call(t, c, "string-utils.format", tt.body)
			if code != http.StatusOK {
				t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, code, env)
			}
			data := env["data"].(map[string]any)
			if data["result"] != tt.result {
				t.Fatalf("expected result %q, got %q", tt.result, data["result"])
			}
			if diff := cmp.Diff(tt.steps, data["transformations"]); diff != "" {
				t.Fatalf("unexpected transformations (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("missing input", func(t *testing.T) {
		code, env := call(t, c, "string-utils.format", `{}`)
		if code != http.StatusBadRequest || env["success"] != false {
			t.Fatalf("expected bad request envelope, got %d %v", code, env)
		}
	})
}

func TestValidate(t *testing.T) {
	c := newCatalog()

	code, env := call(t, c, "string-utils.validate", `{"input":"user@example.com","type":"email"}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if env["data"].(map[string]any)["valid"] != true {
		t.Fatalf("expected valid email, got %v", env)
	}

	_, env = call(t, c, "string-utils.validate", `{"input":"ftp://x","type":"url"}`)
	if env["data"].(map[string]any)["valid"] != false {
		t.Fatalf("expected invalid url, got %v", env)
	}

	code, env = call(t, c, "string-utils.validate", `{"input":"x","type":"iban"}`)
	if code != http.StatusBadRequest || env["code"] != "BAD_REQUEST" {
		t.Fatalf("expected bad request for unknown type, got %d %v", code, env)
	}
}

func TestFilterAndMerge(t *testing.T) {
	c := newCatalog()

	code, env := call(t, c, "json-transformer.filter", `{"data":{"a":1,"b":2,"c":3},"fields":["a","c","z"]}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	want := map[string]any{
		"result":         map[string]any{"a": float64(1), "c": float64(3)},
		"fieldsCount":    float64(2),
		"originalFields": float64(3),
	}
	if diff := cmp.Diff(want, env["data"]); diff != "" {
		t.Fatalf("unexpected filter result (-want +got):\n%s", diff)
	}

	code, env = call(t, c, "json-transformer.merge", `{"objects":[{"a":1,"b":1},{"b":2}]}`)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	want = map[string]any{
		"result":      map[string]any{"a": float64(1), "b": float64(2)},
		"mergedCount": float64(2),
		"totalFields": float64(2),
	}
	if diff := cmp.Diff(want, env["data"]); diff != "" {
		t.Fatalf("unexpected merge result (-want +got):\n%s", diff)
	}

	code, _ = call(t, c, "json-transformer.merge", `{"objects":null}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, code)
	}
}
