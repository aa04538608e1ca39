package docsgen

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/drblury/operatorhost/jsonutil"
	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/router"
)

// Source lists registered operators. *registry.Registry implements it.
type Source interface {
	All() []*operator.Registered
}

// Option configures a Generator.
type Option func(*Generator)

// Generator builds the aggregated OpenAPI document.
type Generator struct {
	logger  *slog.Logger
	info    openapi3.Info
	servers []string
}

// New returns a Generator with the default document template.
func New(opts ...Option) *Generator {
	g := &Generator{
		logger: slog.Default(),
		info: openapi3.Info{
			Title:       "Operator Host API",
			Description: "Aggregated API of every operator discovered by the host.",
			Version:     "1.0.0",
			Contact:     &openapi3.Contact{Name: "Operator Host"},
			License:     &openapi3.License{Name: "MIT", URL: "https://opensource.org/licenses/MIT"},
		},
		servers: []string{"http://localhost:8080"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// WithLogger sets the logger used for conversion and validation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTitle overrides the document title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.info.Title = title
	}
}

// WithVersion overrides the document version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.info.Version = version
	}
}

// WithDescription overrides the document description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.info.Description = description
	}
}

// WithContact overrides the contact block.
func WithContact(name, url, email string) Option {
	return func(g *Generator) {
		g.info.Contact = &openapi3.Contact{Name: name, URL: url, Email: email}
	}
}

// WithServers replaces the server list.
func WithServers(urls ...string) Option {
	return func(g *Generator) {
		g.servers = slices.Clone(urls)
	}
}

// Generate builds a fresh document from the operators of src. Descriptors are
// only read.
func (g *Generator) Generate(ctx context.Context, src Source) *openapi3.T {
	info := g.info
	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &info,
		Paths:      openapi3.NewPaths(),
		Components: baseComponents(),
	}
	for _, url := range g.servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: url})
	}

	for _, op := range src.All() {
		g.addOperator(doc, op)
	}

	if err := openapi3.NewLoader().ResolveRefsIn(doc, nil); err != nil {
		g.logger.Warn("Could not resolve references in generated document.", "error", err)
	}
	if err := doc.Validate(ctx); err != nil {
		g.logger.Warn("Generated document is not valid OpenAPI.", "error", err)
	}
	return doc
}

func (g *Generator) addOperator(doc *openapi3.T, op *operator.Registered) {
	if op == nil || op.Descriptor == nil {
		return
	}
	info := op.Info()
	category := op.Category()
	basePath := router.BasePath(category, info.Name)

	description := info.Description
	if description == "" {
		description = info.Name + " operator"
	}
	doc.Tags = append(doc.Tags, &openapi3.Tag{Name: info.DisplayName(), Description: description})

	for _, subPath := range op.Descriptor.SortedPaths() {
		item := op.Descriptor.Paths[subPath]
		fullPath := basePath + subPath

		pathItem := doc.Paths.Value(fullPath)
		if pathItem == nil {
			pathItem = &openapi3.PathItem{}
		}

		for _, method := range item.SortedMethods() {
			operation, err := convertOperation(item[method])
			if err != nil {
				g.logger.Warn("Skipping operation that is not valid OpenAPI.",
					"operator", op.ID, "path", subPath, "method", method, "error", err)
				continue
			}
			if len(operation.Tags) == 0 {
				operation.Tags = []string{CategoryLabel(category)}
			}
			if operation.OperationID == "" {
				operation.OperationID = OperationID(info.Name, method, subPath)
			}
			pathItem.SetOperation(strings.ToUpper(method), operation)
		}

		if len(pathItem.Operations()) > 0 {
			doc.Paths.Set(fullPath, pathItem)
		}
	}

	g.mergeComponents(doc.Components, op)
}

// mergeComponents copies operator schemas and responses into the shared
// components. A later operator overwrites an earlier one with the same key.
func (g *Generator) mergeComponents(dst *openapi3.Components, op *operator.Registered) {
	components := op.Descriptor.Components()
	if components == nil {
		return
	}

	if schemas, ok := components["schemas"].(map[string]any); ok {
		for _, name := range slices.Sorted(maps.Keys(schemas)) {
			ref := &openapi3.SchemaRef{}
			if err := convert(schemas[name], ref); err != nil {
				g.logger.Warn("Skipping component schema.", "operator", op.ID, "schema", name, "error", err)
				continue
			}
			dst.Schemas[name] = ref
		}
	}

	if responses, ok := components["responses"].(map[string]any); ok {
		for _, name := range slices.Sorted(maps.Keys(responses)) {
			ref := &openapi3.ResponseRef{}
			if err := convert(responses[name], ref); err != nil {
				g.logger.Warn("Skipping component response.", "operator", op.ID, "response", name, "error", err)
				continue
			}
			dst.Responses[name] = ref
		}
	}
}

func convertOperation(raw operator.Operation) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	if err := convert(map[string]any(raw), op); err != nil {
		return nil, err
	}
	return op, nil
}

func convert(raw any, dst interface{ UnmarshalJSON([]byte) error }) error {
	data, err := jsonutil.Marshal(raw)
	if err != nil {
		return err
	}
	return dst.UnmarshalJSON(data)
}

// CategoryLabel turns a category slug into a display label, for example
// "text-processing" into "Text Processing".
func CategoryLabel(category string) string {
	label := strings.NewReplacer("-", " ", "_", " ").Replace(category)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(label), " "))
}

var operationIDReplacer = strings.NewReplacer("/", "_", "{", "_", "}", "_")

// OperationID synthesises an operation id from the operator name, the method
// and the path relative to the operator.
func OperationID(name, method, path string) string {
	return name + "_" + strings.ToLower(method) + "_" + operationIDReplacer.Replace(path)
}
