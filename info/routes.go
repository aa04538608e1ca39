package info

import "net/http"

// Routes registers the introspection endpoints on mux. Register them before
// mounting operators so a clashing operator mount is the one rejected.
func (ih *InfoHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", ih.GetDashboard)
	mux.HandleFunc("GET /health", ih.GetHealth)
	mux.HandleFunc("GET /health/ready", ih.GetReady)
	mux.HandleFunc("GET /api/version", ih.GetVersion)

	mux.HandleFunc("GET /api/operators", ih.GetOperators)
	mux.HandleFunc("GET /api/operators/{category}", ih.GetOperatorsByCategory)
	mux.HandleFunc("GET /api/operators/{category}/{name}/definition", ih.GetOperatorDefinition)
	mux.HandleFunc("GET /api/stats", ih.GetStats)
	mux.HandleFunc("GET /api/search", ih.GetSearch)

	mux.HandleFunc("GET /api/docs", ih.GetOpenAPIHTML)
	mux.HandleFunc("GET /api/docs.json", ih.GetOpenAPIJSON)

	mux.HandleFunc("/", ih.NotFound)
}
