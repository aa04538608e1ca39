// Package info exposes the introspection surface of the host: dashboard,
// health probes, version, operator listings, definitions, statistics, search
// and the aggregated API documentation.
//
// The documentation page can be rendered with one of several OpenAPI viewers:
//   - Swagger UI (default)
//   - Stoplight Elements
//   - Scalar
//   - Redoc
//
// Use WithUIType to pick one. InfoHandler.Routes registers every endpoint on a
// *http.ServeMux, including a catch-all that answers unknown paths with a
// NOT_FOUND envelope. See ExampleInfoHandler_Routes for a complete wiring.
package info
