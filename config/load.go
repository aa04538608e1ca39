package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// setting ties a configuration key to its default, its environment
// variables and its flag.
type setting struct {
	key   string
	def   any
	envs  []string
	flag  string
	usage string
}

var settings = []setting{
	{key: "host", def: "0.0.0.0", envs: []string{"HOST"}, flag: "host", usage: "listen host"},
	{key: "port", def: 8080, envs: []string{"PORT"}, flag: "port", usage: "listen port"},
	{key: "env", def: "development", envs: []string{"APP_ENV", "NODE_ENV"}, flag: "env", usage: "environment name"},
	{key: "baseURL", def: "", envs: []string{"API_BASE_URL"}, flag: "base-url", usage: "public base URL advertised in the API document"},
	{key: "operators.dir", def: "operators", envs: []string{"OPERATORS_DIR"}, flag: "operators-dir", usage: "directory scanned for operator descriptors"},
	{key: "operators.autoReload", def: false, envs: []string{"OPERATORS_AUTO_RELOAD"}, flag: "auto-reload", usage: "reload operators when descriptor files change"},
	{key: "operators.cacheEnabled", def: true, envs: []string{"OPERATORS_CACHE_ENABLED"}, flag: "cache", usage: "cache wrapped operator handlers"},
	{key: "operators.validateRequests", def: true, envs: []string{"OPERATORS_VALIDATE_REQUESTS"}, flag: "validate-requests", usage: "validate operator requests against the API document"},
	{key: "log.level", def: "", envs: []string{"LOG_LEVEL"}, flag: "log-level", usage: "log level (debug, info, warn, error)"},
	{key: "log.format", def: "", envs: []string{"LOG_FORMAT"}, flag: "log-format", usage: "log format (json, console)"},
	{key: "cors.origins", def: []string{"*"}, envs: []string{"CORS_ORIGIN"}, flag: "cors-origin", usage: "allowed CORS origins"},
	{key: "requestTimeoutMs", def: 30000, envs: []string{"REQUEST_TIMEOUT"}, flag: "request-timeout", usage: "request timeout in milliseconds"},
	{key: "monitoring.enabled", def: false, envs: []string{"MONITORING_ENABLED"}, flag: "monitoring", usage: "serve Prometheus metrics"},
	{key: "monitoring.metricsPath", def: "/metrics", envs: []string{"METRICS_PATH"}, flag: "metrics-path", usage: "path of the metrics endpoint"},
	{key: "docs.ui", def: "swagger", envs: []string{"DOCS_UI"}, flag: "docs-ui", usage: "OpenAPI viewer (swagger, stoplight, scalar, redoc)"},
	{key: "readiness.urls", def: []string{}, envs: []string{"READINESS_URLS"}, flag: "readiness-url", usage: "upstream URLs checked by the readiness probe"},
}

// ConfigFlag is the flag naming an optional configuration file.
const ConfigFlag = "config"

// RegisterFlags declares every configuration flag on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFlag, "", "configuration file (yaml, toml or json)")
	for _, s := range settings {
		switch def := s.def.(type) {
		case string:
			flags.String(s.flag, def, s.usage)
		case int:
			flags.Int(s.flag, def, s.usage)
		case bool:
			flags.Bool(s.flag, def, s.usage)
		case []string:
			flags.StringSlice(s.flag, def, s.usage)
		}
	}
}

// Load resolves the configuration. flags may be nil; flags that were not
// set on the command line do not override other sources.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		envs := append([]string{EnvPrefix + "_" + envName(s.key)}, s.envs...)
		if err := v.BindEnv(append([]string{s.key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", s.key, err)
		}
		if flags == nil {
			continue
		}
		if f := flags.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", s.flag, err)
			}
		}
	}

	if flags != nil {
		if path, _ := flags.GetString(ConfigFlag); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "debug"
		if c.IsProduction() {
			c.Log.Level = "info"
		}
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = "console"
		if c.IsProduction() {
			c.Log.Format = "json"
		}
	}
	c.Docs.UI = strings.ToLower(strings.TrimSpace(c.Docs.UI))
	c.CORS.Origins = splitList(c.CORS.Origins)
	c.Readiness.URLs = splitList(c.Readiness.URLs)
}

// splitList flattens comma separated entries, as environment variables
// carry lists in a single value.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// envName maps operators.autoReload to OPERATORS_AUTORELOAD.
func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
