// Package probe builds the readiness and liveness checks used by the health
// endpoints: operator directory checks, host readiness and HTTP checks
// against upstream services such as proxied operator backends. See
// ExampleNewDirectoryProbe and ExampleNewHTTPProbe_withOptions.
package probe
