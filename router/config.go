package router

import (
	"net/http"
	"slices"
	"time"
)

// Config holds the settings of the outer middleware chain.
type Config struct {
	// Timeout bounds the time a handler may take before a 503 is returned.
	Timeout time.Duration
	CORS    CORSConfig
	// QuietdownRoutes are request paths the access log skips.
	QuietdownRoutes []string
	// HideHeaders are request headers redacted in debug access logs.
	HideHeaders []string
}

// CORSConfig controls the CORS stage. CORS is only applied when at least one
// origin is configured; "*" allows every origin. Empty Methods and Headers
// fall back to DefaultCORSMethods and DefaultCORSHeaders.
type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
}

var (
	DefaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	DefaultCORSHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}
)

func (c Config) clone() Config {
	c.QuietdownRoutes = slices.Clone(c.QuietdownRoutes)
	c.HideHeaders = slices.Clone(c.HideHeaders)
	c.CORS.Origins = slices.Clone(c.CORS.Origins)
	c.CORS.Methods = slices.Clone(c.CORS.Methods)
	c.CORS.Headers = slices.Clone(c.CORS.Headers)
	if len(c.CORS.Methods) == 0 {
		c.CORS.Methods = slices.Clone(DefaultCORSMethods)
	}
	if len(c.CORS.Headers) == 0 {
		c.CORS.Headers = slices.Clone(DefaultCORSHeaders)
	}
	return c
}
