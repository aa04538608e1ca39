package builtin

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/responder"
)

var validators = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`),
	"phone": regexp.MustCompile(`^1[3-9]\d{9}$`),
	"url":   regexp.MustCompile(`^https?://.+`),
}

// Text registers string-utils.format and string-utils.validate.
type Text struct {
	Responder *responder.Responder
}

// Register implements handlers.Module.
func (t Text) Register(c *handlers.Catalog) {
	c.RegisterFunc("string-utils.format", t.format)
	c.RegisterFunc("string-utils.validate", t.validate)
}

type formatRequest struct {
	Input   *string `json:"input"`
	Options struct {
		Case string `json:"case"`
		Trim *bool  `json:"trim"`
	} `json:"options"`
}

type lengthChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

type formatResponse struct {
	Result          string       `json:"result"`
	Original        string       `json:"original"`
	Transformations []string     `json:"transformations"`
	Length          lengthChange `json:"length"`
}

func (t Text) format(w http.ResponseWriter, r *http.Request) {
	resp := responderOrDefault(t.Responder)

	var req formatRequest
	if !resp.ReadRequestBody(w, r, &req) {
		return
	}
	if req.Input == nil {
		resp.HandleBadRequestError(w, r, errors.New("input is required"))
		return
	}

	input := *req.Input
	result := input
	transformations := []string{}

	if req.Options.Trim == nil || *req.Options.Trim {
		result = strings.TrimSpace(result)
		transformations = append(transformations, "trim")
	}

	switch req.Options.Case {
	case "":
	case "upper":
		result = strings.ToUpper(result)
		transformations = append(transformations, "uppercase")
	case "lower":
		result = strings.ToLower(result)
		transformations = append(transformations, "lowercase")
	case "title":
		result = cases.Title(language.Und).String(result)
		transformations = append(transformations, "title-case")
	default:
		resp.HandleBadRequestError(w, r, fmt.Errorf("unsupported case %q", req.Options.Case))
		return
	}

	resp.RespondWithData(w, r, http.StatusOK, formatResponse{
		Result:          result,
		Original:        input,
		Transformations: transformations,
		Length: lengthChange{
			Before: utf8.RuneCountInString(input),
			After:  utf8.RuneCountInString(result),
		},
	})
}

type validateRequest struct {
	Input string `json:"input"`
	Type  string `json:"type"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Type    string `json:"type"`
	Input   string `json:"input"`
	Message string `json:"message"`
}

func (t Text) validate(w http.ResponseWriter, r *http.Request) {
	resp := responderOrDefault(t.Responder)

	var req validateRequest
	if !resp.ReadRequestBody(w, r, &req) {
		return
	}

	pattern, ok := validators[req.Type]
	if !ok {
		resp.HandleBadRequestError(w, r, fmt.Errorf("unsupported validation type %q", req.Type))
		return
	}

	valid := pattern.MatchString(req.Input)
	message := "validation failed"
	if valid {
		message = "validation passed"
	}
	resp.RespondWithData(w, r, http.StatusOK, validateResponse{
		Valid:   valid,
		Type:    req.Type,
		Input:   req.Input,
		Message: message,
	})
}

func responderOrDefault(r *responder.Responder) *responder.Responder {
	if r != nil {
		return r
	}
	return responder.NewResponder()
}
