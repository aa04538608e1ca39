// Package routes loads operator route binding files.
//
// A route binding file is HCL. Each route block binds a method and a path,
// relative to the operator base path, to a compiled-in handler or to a static
// response. Proxy blocks forward a path prefix to an upstream service.
//
//	route "POST" "/format" {
//	  handler = "string-utils.format"
//	}
//
//	route "GET" "/ping" {
//	  status       = 200
//	  body         = "{\"pong\":true}"
//	  content_type = "application/json"
//	}
//
//	proxy "/legacy/" {
//	  upstream = "http://127.0.0.1:9000"
//	}
package routes
