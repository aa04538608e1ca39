package info

import (
	"context"
	"html/template"
	"net/http"
	"runtime"
	"time"

	"github.com/drblury/operatorhost/host"
	"github.com/drblury/operatorhost/probe"
	"github.com/drblury/operatorhost/responder"
)

// Catalog is what the info endpoints read from the host. *host.Service
// implements it.
type Catalog interface {
	Operators() []host.OperatorSummary
	OperatorsByCategory(category string) []host.OperatorSummary
	OperatorDefinition(id string, r *http.Request) (*host.Definition, error)
	Search(ctx context.Context, query string, limit int) ([]host.SearchResult, error)
	Stats() host.Stats
	DocumentJSON() []byte
}

// InfoProvider returns the payload exposed by the version endpoint.
type InfoProvider func() any

// InfoOption configures NewInfoHandler.
type InfoOption func(*InfoHandler)

// TemplateDataProvider customises the data passed to the OpenAPI HTML
// template at render time.
type TemplateDataProvider func(r *http.Request, baseURL string) any

const (
	defaultProbeTimeout = 2 * time.Second
	defaultTitle        = "Operator Host"
)

// ProbeFunc is executed to determine the outcome of liveness or readiness
// probes. Returning a non-nil error marks the probe as failed.
type ProbeFunc = probe.Func

// InfoHandler serves the host introspection endpoints.
type InfoHandler struct {
	*responder.Responder
	catalog           Catalog
	title             string
	version           string
	environment       string
	baseURL           string
	infoProvider      InfoProvider
	openapiTemplate   *template.Template
	dashboardTemplate *template.Template
	dataProvider      TemplateDataProvider
	probeTimeout      time.Duration
	livenessChecks    []ProbeFunc
	readinessChecks   []ProbeFunc
	uiType            UIType
	startedAt         time.Time
	now               func() time.Time
}

// NewInfoHandler builds an InfoHandler reading from catalog.
func NewInfoHandler(catalog Catalog, opts ...InfoOption) *InfoHandler {
	ih := &InfoHandler{
		Responder:         responder.NewResponder(),
		catalog:           catalog,
		title:             defaultTitle,
		version:           "dev",
		environment:       "development",
		openapiTemplate:   templateSwaggerUI,
		dashboardTemplate: defaultDashboardTemplate,
		dataProvider:      defaultTemplateDataProvider,
		probeTimeout:      defaultProbeTimeout,
		uiType:            UISwaggerUI,
		now:               time.Now,
	}
	ih.infoProvider = ih.defaultInfo
	for _, opt := range opts {
		if opt != nil {
			opt(ih)
		}
	}
	ih.startedAt = ih.now()
	return ih
}

// WithInfoResponder replaces the responder used for JSON responses and errors.
func WithInfoResponder(responder *responder.Responder) InfoOption {
	return func(ih *InfoHandler) {
		if responder != nil {
			ih.Responder = responder
		}
	}
}

// WithTitle sets the title shown on the dashboard and docs pages.
func WithTitle(title string) InfoOption {
	return func(ih *InfoHandler) {
		if title != "" {
			ih.title = title
		}
	}
}

// WithVersion sets the version reported by health and version endpoints.
func WithVersion(version string) InfoOption {
	return func(ih *InfoHandler) {
		if version != "" {
			ih.version = version
		}
	}
}

// WithEnvironment sets the environment name reported by the health endpoint.
func WithEnvironment(env string) InfoOption {
	return func(ih *InfoHandler) {
		if env != "" {
			ih.environment = env
		}
	}
}

// WithBaseURL sets the URL prefix used for links to the JSON document.
func WithBaseURL(baseURL string) InfoOption {
	return func(ih *InfoHandler) {
		ih.baseURL = baseURL
	}
}

// WithInfoProvider swaps the version payload provider.
func WithInfoProvider(provider InfoProvider) InfoOption {
	return func(ih *InfoHandler) {
		if provider != nil {
			ih.infoProvider = provider
		}
	}
}

// WithOpenAPITemplate injects a custom template for the docs page.
func WithOpenAPITemplate(tmpl *template.Template) InfoOption {
	return func(ih *InfoHandler) {
		if tmpl != nil {
			ih.openapiTemplate = tmpl
		}
	}
}

// WithOpenAPITemplateData overrides the docs page template data provider.
func WithOpenAPITemplateData(provider TemplateDataProvider) InfoOption {
	return func(ih *InfoHandler) {
		if provider != nil {
			ih.dataProvider = provider
		}
	}
}

// WithProbeTimeout adjusts the maximum duration allowed for probe checks.
func WithProbeTimeout(timeout time.Duration) InfoOption {
	return func(ih *InfoHandler) {
		if timeout > 0 {
			ih.probeTimeout = timeout
		}
	}
}

// WithLivenessChecks sets the checks run by the health endpoint.
func WithLivenessChecks(checks ...ProbeFunc) InfoOption {
	return func(ih *InfoHandler) {
		ih.livenessChecks = filterProbes(checks)
	}
}

// WithReadinessChecks sets the checks run by the readiness endpoint.
func WithReadinessChecks(checks ...ProbeFunc) InfoOption {
	return func(ih *InfoHandler) {
		ih.readinessChecks = filterProbes(checks)
	}
}

// WithUIType selects the OpenAPI viewer.
func WithUIType(uiType UIType) InfoOption {
	return func(ih *InfoHandler) {
		ih.uiType = uiType
		ih.openapiTemplate = templateFor(uiType)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) InfoOption {
	return func(ih *InfoHandler) {
		if now != nil {
			ih.now = now
		}
	}
}

func (ih *InfoHandler) defaultInfo() any {
	return map[string]string{
		"name":        "operatorhost",
		"version":     ih.version,
		"environment": ih.environment,
		"go":          runtime.Version(),
	}
}

func defaultTemplateDataProvider(_ *http.Request, baseURL string) any {
	return map[string]any{
		"BaseURL": baseURL,
		"SpecURL": baseURL + "/api/docs.json",
		"Title":   "Operator Host API",
	}
}
