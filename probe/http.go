package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer is the part of *http.Client the HTTP probe needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOption configures NewHTTPProbe.
type HTTPOption func(*httpCheck)

type httpCheck struct {
	name    string
	method  string
	target  string
	client  HTTPDoer
	timeout time.Duration
	header  http.Header
	accept  func(status int) bool
}

// WithHTTPTimeout bounds each probe request, on top of any deadline already
// carried by the probe context.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *httpCheck) {
		c.timeout = d
	}
}

// WithHTTPAllowedStatuses makes the probe pass only for the listed status
// codes. Without any codes the 2xx default stays in place.
func WithHTTPAllowedStatuses(statuses ...int) HTTPOption {
	return func(c *httpCheck) {
		if len(statuses) == 0 {
			return
		}
		allowed := make(map[int]bool, len(statuses))
		for _, status := range statuses {
			allowed[status] = true
		}
		c.accept = func(status int) bool { return allowed[status] }
	}
}

// WithHTTPHeader adds a header to every probe request.
func WithHTTPHeader(key, value string) HTTPOption {
	return func(c *httpCheck) {
		c.header.Add(key, value)
	}
}

// NewHTTPProbe requests target and passes on a 2xx answer. An empty method
// means GET and a nil client means http.DefaultClient.
func NewHTTPProbe(name, method, target string, client HTTPDoer, opts ...HTTPOption) Func {
	c := &httpCheck{
		name:   name,
		method: strings.ToUpper(strings.TrimSpace(method)),
		target: strings.TrimSpace(target),
		client: client,
		header: make(http.Header),
		accept: successful,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.method == "" {
		c.method = http.MethodGet
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c.run
}

func (c *httpCheck) run(ctx context.Context) error {
	if c.target == "" {
		return fmt.Errorf("%s probe: target URL is required", c.name)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.target, nil)
	if err != nil {
		return fmt.Errorf("%s probe: build request: %w", c.name, err)
	}
	for key, values := range c.header {
		req.Header[key] = append(req.Header[key], values...)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s probe request failed: %w", c.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if !c.accept(resp.StatusCode) {
		return fmt.Errorf("%s probe: unexpected status %d %s", c.name, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

func successful(status int) bool {
	return status >= 200 && status < 300
}
