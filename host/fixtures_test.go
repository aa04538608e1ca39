package host

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const stringUtilsDescriptor = `info:
  name: string-utils
  title: String Utilities
  description: Formats and validates strings
  version: 1.0.0
  category: text-processing
  tags: [text, format]
routes: ./string-utils.routes.hcl
openapi:
  paths:
    /format:
      post:
        summary: Format text
        requestBody:
          required: true
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/FormatRequest'
        responses:
          200:
            description: Formatted
            content:
              application/json:
                schema:
                  $ref: '#/components/schemas/FormatResponse'
    /validate:
      post:
        operationId: validateValue
        responses:
          201:
            description: Validated
            content:
              application/json:
                schema:
                  type: object
                  properties:
                    valid: {type: boolean}
    /broken:
      get:
        responses:
          200:
            description: Broken reference
            content:
              application/json:
                schema:
                  $ref: '#/components/schemas/Missing'
  components:
    schemas:
      FormatRequest:
        type: object
        required: [input]
        properties:
          input: {type: string}
      FormatResponse:
        type: object
        properties:
          result: {type: string}
`

const stringUtilsRoutes = `route "POST" "/format" {
  handler = "string-utils.format"
}

route "POST" "/validate" {
  handler = "string-utils.validate"
}

route "GET" "/broken" {
  status = 200
  body   = "{}"
}
`

const jsonTransformerDescriptor = `{
  "info": {
    "name": "json-transformer",
    "description": "Filters and merges JSON objects",
    "version": "2.0.0"
  },
  "routes": "./json-transformer.routes.hcl",
  "openapi": {
    "paths": {
      "/filter": {"post": {"summary": "Filter fields", "responses": {"200": {"description": "Filtered"}}}},
      "/merge": {"post": {"summary": "Merge objects", "responses": {"200": {"description": "Merged"}}}}
    }
  }
}
`

const jsonTransformerRoutes = `route "POST" "/filter" {
  handler = "json-transformer.filter"
}

route "POST" "/merge" {
  handler = "json-transformer.merge"
}
`

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// operatorTree lays out one operator per category. json-transformer has no
// category in its descriptor and takes it from its directory.
func operatorTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "text-processing", "string-utils.operator.yaml"), stringUtilsDescriptor)
	writeFixture(t, filepath.Join(root, "text-processing", "string-utils.routes.hcl"), stringUtilsRoutes)
	writeFixture(t, filepath.Join(root, "data-transform", "json-transformer.operator.json"), jsonTransformerDescriptor)
	writeFixture(t, filepath.Join(root, "data-transform", "json-transformer.routes.hcl"), jsonTransformerRoutes)
	return root
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}
