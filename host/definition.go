package host

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-openapi/jsonpointer"
	"github.com/mohae/deepcopy"

	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/router"
)

const (
	definitionType    = "operator-definition"
	definitionVersion = "1.0.0"
	definitionSource  = "operatorhost"
)

// Definition is the portable export of one operator.
type Definition struct {
	Type     string             `json:"type"`
	Version  string             `json:"version"`
	Operator OperatorDefinition `json:"operator"`
}

// OperatorDefinition describes the operator and its methods.
type OperatorDefinition struct {
	Identifier    string             `json:"identifier"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Version       string             `json:"version"`
	Category      string             `json:"category"`
	Tags          []string           `json:"tags"`
	Author        string             `json:"author"`
	Configuration map[string]any     `json:"configuration"`
	Methods       []Method           `json:"methods"`
	Metadata      DefinitionMetadata `json:"metadata"`
}

// Method is one callable path and method of an operator.
type Method struct {
	Name          string              `json:"name"`
	Identifier    string              `json:"identifier"`
	Description   string              `json:"description"`
	InputSchema   map[string]any      `json:"inputSchema"`
	OutputSchema  map[string]any      `json:"outputSchema"`
	Configuration MethodConfiguration `json:"configuration"`
	IsDefault     bool                `json:"isDefault"`
	Order         int                 `json:"order"`
	Status        string              `json:"status"`
}

// MethodConfiguration carries the schema of the per-method settings and
// their current values.
type MethodConfiguration struct {
	Schema map[string]any `json:"schema"`
	Values MethodValues   `json:"values"`
}

// MethodValues are the default settings of a method.
type MethodValues struct {
	Method   string  `json:"method"`
	Endpoint string  `json:"endpoint"`
	Headers  []any   `json:"headers"`
	Caching  Caching `json:"caching"`
}

// Caching is the per-method cache setting.
type Caching struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds"`
}

// DefinitionMetadata records where and when the definition was exported.
type DefinitionMetadata struct {
	Source             string    `json:"source"`
	ExportedAt         time.Time `json:"exportedAt"`
	ExportedBy         string    `json:"exportedBy"`
	OriginalOperatorID string    `json:"originalOperatorId"`
	RegisteredAt       time.Time `json:"registeredAt"`
}

// RequestBaseURL derives scheme and host of r, honouring X-Forwarded-Proto
// and X-Forwarded-Host. fallbackHost is used when r has no host at all.
func RequestBaseURL(r *http.Request, fallbackHost string) string {
	scheme := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}

	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = fallbackHost
	}
	return scheme + "://" + host
}

func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func (s *Service) definition(op *operator.Registered, baseURL string) *Definition {
	info := op.Info()
	author := info.Author
	if author == "" {
		author = s.cfg.defaultAuthor
	}
	tags := info.Tags
	if tags == nil {
		tags = []string{}
	}

	return &Definition{
		Type:    definitionType,
		Version: definitionVersion,
		Operator: OperatorDefinition{
			Identifier:    info.Name,
			Name:          info.DisplayName(),
			Description:   info.Description,
			Version:       info.Version,
			Category:      op.Category(),
			Tags:          tags,
			Author:        author,
			Configuration: operatorConfiguration(baseURL),
			Methods:       s.methods(op),
			Metadata: DefinitionMetadata{
				Source:             definitionSource,
				ExportedAt:         s.cfg.now().UTC(),
				ExportedBy:         s.cfg.exportedBy,
				OriginalOperatorID: op.ID,
				RegisteredAt:       op.RegisteredAt,
			},
		},
	}
}

func operatorConfiguration(baseURL string) map[string]any {
	return map[string]any{
		"schema": map[string]any{
			"type": "api",
			"properties": map[string]any{
				"serverUrl": map[string]any{
					"type":        "string",
					"title":       "Server URL",
					"required":    true,
					"description": "Base address of the API server",
					"default":     baseURL,
				},
				"timeout": map[string]any{
					"type":        "number",
					"title":       "Timeout",
					"default":     30000,
					"description": "Request timeout in milliseconds",
				},
				"headers": headersSchema("Global headers", "Headers sent with every request"),
				"retryPolicy": map[string]any{
					"type":  "object",
					"title": "Retry policy",
					"properties": map[string]any{
						"intervalMs":  map[string]any{"type": "number", "title": "Retry interval", "default": 1000},
						"maxAttempts": map[string]any{"type": "number", "title": "Max attempts", "default": 3},
					},
				},
			},
		},
	}
}

func headersSchema(title, description string) map[string]any {
	schema := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string"},
				"value": map[string]any{"type": "string"},
			},
		},
		"title": title,
	}
	if description != "" {
		schema["description"] = description
	}
	return schema
}

func (s *Service) methods(op *operator.Registered) []Method {
	info := op.Info()
	base := router.BasePath(op.Category(), info.Name)
	refs := schemaResolver{doc: op.Descriptor.OpenAPI, s: s, operatorID: op.ID}

	methods := []Method{}
	for _, path := range op.Descriptor.SortedPaths() {
		item := op.Descriptor.Paths[path]
		for _, httpMethod := range item.SortedMethods() {
			operation := item[httpMethod]
			upper := strings.ToUpper(httpMethod)
			endpoint := base + path

			methodName, _ := operation["operationId"].(string)
			if methodName == "" {
				methodName = httpMethod + alphanumeric(path)
			}
			name, _ := operation["summary"].(string)
			if name == "" {
				name = methodName
			}
			description, _ := operation["description"].(string)

			headers := headersSchema("Headers", "")
			headers["default"] = []any{}

			methods = append(methods, Method{
				Name:         name,
				Identifier:   strings.ToLower(methodName),
				Description:  description,
				InputSchema:  refs.input(operation["requestBody"]),
				OutputSchema: refs.output(operation["responses"]),
				Configuration: MethodConfiguration{
					Schema: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"method":   map[string]any{"type": "string", "enum": []any{upper}, "default": upper},
							"endpoint": map[string]any{"type": "string", "default": endpoint},
							"headers":  headers,
							"caching": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"enabled":    map[string]any{"type": "boolean", "default": false},
									"ttlSeconds": map[string]any{"type": "number", "default": 3600},
								},
							},
						},
					},
					Values: MethodValues{
						Method:   upper,
						Endpoint: endpoint,
						Headers:  []any{},
						Caching:  Caching{Enabled: false, TTLSeconds: 3600},
					},
				},
				IsDefault: len(methods) == 0,
				Order:     len(methods),
				Status:    "ACTIVE",
			})
		}
	}
	return methods
}

func alphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

// schemaResolver extracts JSON schemas from operations and resolves local
// references against the operator fragment.
type schemaResolver struct {
	doc        map[string]any
	s          *Service
	operatorID string
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (r schemaResolver) input(requestBody any) map[string]any {
	body := r.deref(requestBody)
	return r.jsonSchema(body)
}

func (r schemaResolver) output(responses any) map[string]any {
	all, ok := responses.(map[string]any)
	if !ok {
		return emptyObjectSchema()
	}
	for _, status := range []string{"200", "201", "default"} {
		if resp, ok := all[status]; ok {
			return r.jsonSchema(r.deref(resp))
		}
	}
	return emptyObjectSchema()
}

func (r schemaResolver) jsonSchema(holder map[string]any) map[string]any {
	content, _ := holder["content"].(map[string]any)
	media, _ := content["application/json"].(map[string]any)
	schema, ok := media["schema"].(map[string]any)
	if !ok {
		return emptyObjectSchema()
	}
	if ref, ok := schema["$ref"].(string); ok {
		return r.resolve(ref)
	}
	return copySchema(schema)
}

// deref follows a $ref on request body or response objects.
func (r schemaResolver) deref(v any) map[string]any {
	m, _ := v.(map[string]any)
	if ref, ok := m["$ref"].(string); ok {
		return r.resolve(ref)
	}
	return m
}

func (r schemaResolver) resolve(ref string) map[string]any {
	logger := r.s.cfg.logger
	if !strings.HasPrefix(ref, "#/") {
		logger.Warn("Unsupported schema reference.", "operator", r.operatorID, "ref", ref)
		return emptyObjectSchema()
	}

	ptr, err := jsonpointer.New(ref[1:])
	if err != nil {
		logger.Warn("Invalid schema reference.", "operator", r.operatorID, "ref", ref, "error", err)
		return emptyObjectSchema()
	}
	value, _, err := ptr.Get(r.doc)
	if err != nil {
		logger.Warn("Unresolvable schema reference.", "operator", r.operatorID, "ref", ref, "error", err)
		return emptyObjectSchema()
	}
	resolved, ok := value.(map[string]any)
	if !ok {
		logger.Warn("Schema reference does not point to an object.", "operator", r.operatorID, "ref", ref)
		return emptyObjectSchema()
	}
	return copySchema(resolved)
}

func copySchema(schema map[string]any) map[string]any {
	copied, ok := deepcopy.Copy(schema).(map[string]any)
	if !ok {
		return emptyObjectSchema()
	}
	return copied
}
