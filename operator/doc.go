// Package operator defines the operator descriptor model shared by discovery,
// the registry, the router builder and the docs generator.
//
// A descriptor is a data file (YAML, JSON or TOML) named
// <name>.operator.<ext>. It carries the operator metadata under info, the
// relative path of its route binding file under routes, and an OpenAPI
// fragment under openapi whose paths are relative to the operator base path.
//
//	info:
//	  name: string-utils
//	  title: String Utilities
//	  version: 1.0.0
//	routes: ./string-utils.routes.hcl
//	openapi:
//	  paths:
//	    /format:
//	      post:
//	        summary: Format text
package operator
