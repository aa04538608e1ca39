// Package router assembles the HTTP surface of the host.
//
// New wraps a handler with the outer middleware chain. Its built-in stages
// (recovery, CORS, timeout and access logging) can be switched off with
// Without. Builder mounts registered operators under
// /api/{category}/{name} with per-request instrumentation and optional OpenAPI
// request validation. ExampleNew_customOptions combines built-in stages with
// a custom middleware.
package router
