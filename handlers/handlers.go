// Package handlers holds the compiled-in request handlers that route binding
// files refer to by name.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

// Module registers a group of handlers into a catalog.
type Module interface {
	Register(c *Catalog)
}

// Catalog maps handler names such as "string-utils.format" to handlers.
type Catalog struct {
	mu  sync.RWMutex
	all map[string]http.Handler
}

// New creates an empty catalog and installs the given modules.
func New(modules ...Module) *Catalog {
	c := &Catalog{all: make(map[string]http.Handler)}
	for _, m := range modules {
		if m != nil {
			m.Register(c)
		}
	}
	return c
}

// Register adds a handler. Registering the same name twice, or a nil
// handler, is a programming error and panics.
func (c *Catalog) Register(name string, h http.Handler) {
	if h == nil {
		panic(fmt.Sprintf("handler %q is nil", name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.all[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering operator handler.", "name", name)
	c.all[name] = h
}

// RegisterFunc is Register for plain functions.
func (c *Catalog) RegisterFunc(name string, fn func(http.ResponseWriter, *http.Request)) {
	c.Register(name, http.HandlerFunc(fn))
}

// Lookup returns the handler registered under name.
func (c *Catalog) Lookup(name string) (http.Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.all[name]
	return h, ok
}

// Names lists registered handler names in lexical order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.all))
	for name := range c.all {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
