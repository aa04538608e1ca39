// Package builtin provides the demo operator handlers that ship with the host:
// string-utils (format, validate) and json-transformer (filter, merge).
package builtin
