package info

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/drblury/operatorhost/host"
)

// GetOpenAPIJSON writes the aggregated OpenAPI document. The document is
// readable from any origin so hosted viewers can load it.
func (ih *InfoHandler) GetOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(ih.catalog.DocumentJSON()); err != nil {
		ih.Logger().Error("failed to write openapi document", "error", err)
	}
}

// GetOpenAPIHTML renders the configured OpenAPI viewer.
func (ih *InfoHandler) GetOpenAPIHTML(w http.ResponseWriter, r *http.Request) {
	data := ih.dataProvider(r, ih.baseURL)
	if m, ok := data.(map[string]any); ok {
		if _, set := m["Title"]; !set || ih.title != defaultTitle {
			m["Title"] = ih.title + " API"
		}
	}
	ih.renderHTML(w, r, ih.openapiTemplate.Execute, data)
}

type dashboardOperator struct {
	host.OperatorSummary
	DefinitionURL string
}

type dashboardData struct {
	Title       string
	Version     string
	Environment string
	DocsURL     string
	Stats       host.Stats
	Operators   []dashboardOperator
}

// GetDashboard renders the HTML overview of the loaded operators.
func (ih *InfoHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ops := ih.catalog.Operators()
	items := make([]dashboardOperator, 0, len(ops))
	for _, op := range ops {
		items = append(items, dashboardOperator{
			OperatorSummary: op,
			DefinitionURL:   ih.baseURL + "/api/operators/" + op.Category + "/" + op.Name + "/definition",
		})
	}
	ih.renderHTML(w, r, ih.dashboardTemplate.Execute, dashboardData{
		Title:       ih.title,
		Version:     ih.version,
		Environment: ih.environment,
		DocsURL:     ih.baseURL + "/api/docs",
		Stats:       ih.catalog.Stats(),
		Operators:   items,
	})
}

// NotFound answers paths no other route matched.
func (ih *InfoHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	ih.HandleNotFoundError(w, r, fmt.Errorf("route %s %s not found", r.Method, r.URL.Path))
}

func (ih *InfoHandler) renderHTML(w http.ResponseWriter, r *http.Request, execute func(w io.Writer, data any) error, data any) {
	var buf bytes.Buffer
	if err := execute(&buf, data); err != nil {
		ih.HandleInternalServerError(w, r, err, "render html")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		ih.Logger().Error("failed to write html", "error", err)
	}
}
