package info_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/drblury/operatorhost/host"
	"github.com/drblury/operatorhost/info"
	"github.com/drblury/operatorhost/responder"
)

func ExampleInfoHandler_Routes() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := host.New(host.WithLogger(logger))
	defer svc.Close()

	mux := http.NewServeMux()
	ih := info.NewInfoHandler(svc,
		info.WithInfoResponder(responder.NewResponder(responder.WithLogger(logger))),
		info.WithUIType(info.UIScalar),
	)
	ih.Routes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/operators/unknown", nil))

	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	fmt.Println(rr.Code, body.Code)
	// Output: 404 CATEGORY_NOT_FOUND
}
