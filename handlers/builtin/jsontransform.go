package builtin

import (
	"errors"
	"net/http"

	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/responder"
)

// JSONTransform registers json-transformer.filter and json-transformer.merge.
type JSONTransform struct {
	Responder *responder.Responder
}

// Register implements handlers.Module.
func (j JSONTransform) Register(c *handlers.Catalog) {
	c.RegisterFunc("json-transformer.filter", j.filter)
	c.RegisterFunc("json-transformer.merge", j.merge)
}

type filterRequest struct {
	Data   map[string]any `json:"data"`
	Fields []string       `json:"fields"`
}

type filterResponse struct {
	Result         map[string]any `json:"result"`
	FieldsCount    int            `json:"fieldsCount"`
	OriginalFields int            `json:"originalFields"`
}

func (j JSONTransform) filter(w http.ResponseWriter, r *http.Request) {
	resp := responderOrDefault(j.Responder)

	var req filterRequest
	if !resp.ReadRequestBody(w, r, &req) {
		return
	}
	if req.Data == nil {
		resp.HandleBadRequestError(w, r, errors.New("data must be an object"))
		return
	}

	result := make(map[string]any, len(req.Fields))
	for _, field := range req.Fields {
		if v, ok := req.Data[field]; ok {
			result[field] = v
		}
	}

	resp.RespondWithData(w, r, http.StatusOK, filterResponse{
		Result:         result,
		FieldsCount:    len(result),
		OriginalFields: len(req.Data),
	})
}

type mergeRequest struct {
	Objects []map[string]any `json:"objects"`
}

type mergeResponse struct {
	Result      map[string]any `json:"result"`
	MergedCount int            `json:"mergedCount"`
	TotalFields int            `json:"totalFields"`
}

func (j JSONTransform) merge(w http.ResponseWriter, r *http.Request) {
	resp := responderOrDefault(j.Responder)

	var req mergeRequest
	if !resp.ReadRequestBody(w, r, &req) {
		return
	}
	if req.Objects == nil {
		resp.HandleBadRequestError(w, r, errors.New("objects must be an array"))
		return
	}

	result := make(map[string]any)
	for _, obj := range req.Objects {
		for k, v := range obj {
			result[k] = v
		}
	}

	resp.RespondWithData(w, r, http.StatusOK, mergeResponse{
		Result:      result,
		MergedCount: len(req.Objects),
		TotalFields: len(result),
	})
}
