// Package config loads the host configuration from defaults, an optional
// config file, environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of the namespaced environment variables, e.g.
// OPERATORHOST_PORT.
const EnvPrefix = "OPERATORHOST"

// Config is the resolved host configuration.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"env"`
	// BaseURL is advertised as the server of the aggregated API document.
	BaseURL string `mapstructure:"baseURL"`

	Operators  OperatorsConfig  `mapstructure:"operators"`
	Log        LogConfig        `mapstructure:"log"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Docs       DocsConfig       `mapstructure:"docs"`
	Readiness  ReadinessConfig  `mapstructure:"readiness"`

	RequestTimeoutMS int `mapstructure:"requestTimeoutMs"`
}

// OperatorsConfig controls discovery and mounting.
type OperatorsConfig struct {
	Dir              string `mapstructure:"dir"`
	AutoReload       bool   `mapstructure:"autoReload"`
	CacheEnabled     bool   `mapstructure:"cacheEnabled"`
	ValidateRequests bool   `mapstructure:"validateRequests"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig lists the origins allowed by the CORS middleware. An empty list
// disables CORS handling.
type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// MonitoringConfig toggles the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metricsPath"`
}

// DocsConfig selects the OpenAPI viewer.
type DocsConfig struct {
	UI string `mapstructure:"ui"`
}

// ReadinessConfig lists upstream URLs that must answer before the host
// reports ready.
type ReadinessConfig struct {
	URLs []string `mapstructure:"urls"`
}

// RequestTimeout returns the request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the host runs in the production environment.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
	docsUIs    = []string{"swagger", "stoplight", "scalar", "redoc"}
)

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if strings.TrimSpace(c.Operators.Dir) == "" {
		errs = append(errs, errors.New("operators directory is required"))
	}
	if c.RequestTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("request timeout %dms is negative", c.RequestTimeoutMS))
	}
	if !oneOf(c.Log.Level, logLevels) {
		errs = append(errs, fmt.Errorf("log level %q is not one of %v", c.Log.Level, logLevels))
	}
	if !oneOf(c.Log.Format, logFormats) {
		errs = append(errs, fmt.Errorf("log format %q is not one of %v", c.Log.Format, logFormats))
	}
	if !oneOf(c.Docs.UI, docsUIs) {
		errs = append(errs, fmt.Errorf("docs ui %q is not one of %v", c.Docs.UI, docsUIs))
	}
	if c.Monitoring.Enabled && !strings.HasPrefix(c.Monitoring.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics path %q must start with /", c.Monitoring.MetricsPath))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
