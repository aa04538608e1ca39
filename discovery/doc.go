// Package discovery walks an operators directory, loads every descriptor it
// finds together with its route binding file, and reports what it loaded,
// skipped and failed to load. Failures of single operators never abort a scan.
package discovery
