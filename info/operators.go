package info

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/drblury/operatorhost/host"
	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/responder"
	"github.com/drblury/operatorhost/search"
)

// OperatorList is the payload of the operator listing endpoints.
type OperatorList struct {
	Operators  []host.OperatorSummary `json:"operators"`
	Total      int                    `json:"total"`
	Category   string                 `json:"category,omitempty"`
	Categories []string               `json:"categories,omitempty"`
	Endpoints  int                    `json:"endpoints"`
}

// SearchPayload is the payload of the search endpoint.
type SearchPayload struct {
	Query   string              `json:"query"`
	Results []host.SearchResult `json:"results"`
	Total   int                 `json:"total"`
}

// StatsPayload is the payload of the stats endpoint.
type StatsPayload struct {
	host.Stats
	Timestamp string `json:"timestamp"`
}

// GetVersion writes the version payload.
func (ih *InfoHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	ih.RespondWithData(w, r, http.StatusOK, ih.infoProvider())
}

// GetOperators lists every registered operator.
func (ih *InfoHandler) GetOperators(w http.ResponseWriter, r *http.Request) {
	ops := ih.catalog.Operators()
	stats := ih.catalog.Stats()
	ih.RespondWithData(w, r, http.StatusOK, OperatorList{
		Operators:  ops,
		Total:      len(ops),
		Categories: stats.Categories,
		Endpoints:  countEndpoints(ops),
	})
}

// GetOperatorsByCategory lists the operators of the {category} path value.
func (ih *InfoHandler) GetOperatorsByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	ops := ih.catalog.OperatorsByCategory(category)
	if len(ops) == 0 {
		err := responder.WithCode(fmt.Errorf("category %q not found", category), "CATEGORY_NOT_FOUND")
		ih.HandleNotFoundError(w, r, err)
		return
	}
	ih.RespondWithData(w, r, http.StatusOK, OperatorList{
		Operators: ops,
		Total:     len(ops),
		Category:  category,
		Endpoints: countEndpoints(ops),
	})
}

// GetOperatorDefinition exports one operator in the portable definition
// format.
func (ih *InfoHandler) GetOperatorDefinition(w http.ResponseWriter, r *http.Request) {
	id := operator.ID(r.PathValue("category"), r.PathValue("name"))
	def, err := ih.catalog.OperatorDefinition(id, r)
	if err != nil {
		if errors.Is(err, host.ErrOperatorNotFound) {
			ih.HandleNotFoundError(w, r, responder.WithCode(err, "OPERATOR_NOT_FOUND"))
			return
		}
		ih.HandleInternalServerError(w, r, err, "export operator definition")
		return
	}
	ih.RespondWithData(w, r, http.StatusOK, def)
}

// GetStats writes the combined host counters.
func (ih *InfoHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ih.RespondWithData(w, r, http.StatusOK, StatsPayload{
		Stats:     ih.catalog.Stats(),
		Timestamp: ih.now().UTC().Format(time.RFC3339),
	})
}

// GetSearch runs the q query parameter against the search index. limit is
// optional.
func (ih *InfoHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ih.HandleBadRequestError(w, r, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	results, err := ih.catalog.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			ih.HandleBadRequestError(w, r, err)
			return
		}
		ih.HandleInternalServerError(w, r, err, "search operators")
		return
	}
	ih.RespondWithData(w, r, http.StatusOK, SearchPayload{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}

func countEndpoints(ops []host.OperatorSummary) int {
	total := 0
	for _, op := range ops {
		total += op.EndpointCount
	}
	return total
}
