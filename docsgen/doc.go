// Package docsgen aggregates the OpenAPI fragments of registered operators
// into a single kin-openapi document.
//
// Every operator path is prefixed with its mount point, so an operator named
// string-utils in the text-processing category that declares /format ends up
// under /api/text-processing/string-utils/format. Operators without tags are
// tagged with their category label and get a synthesised operationId.
package docsgen
