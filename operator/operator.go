package operator

import (
	"net/http"
	"slices"
	"strings"
	"time"
)

// DefaultCategory is used when neither the descriptor nor its location names
// a category.
const DefaultCategory = "default"

// Info is the descriptive metadata block of a descriptor.
type Info struct {
	Name        string   `mapstructure:"name" json:"name"`
	Title       string   `mapstructure:"title" json:"title,omitempty"`
	Description string   `mapstructure:"description" json:"description,omitempty"`
	Version     string   `mapstructure:"version" json:"version,omitempty"`
	Category    string   `mapstructure:"category" json:"category,omitempty"`
	Tags        []string `mapstructure:"tags" json:"tags,omitempty"`
	Author      string   `mapstructure:"author" json:"author,omitempty"`
}

// DisplayName returns the title, falling back to the name.
func (i Info) DisplayName() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

// Operation is one OpenAPI operation object kept in its decoded form.
type Operation map[string]any

// PathItem maps lower-case HTTP methods to operations.
type PathItem map[string]Operation

// Descriptor is a decoded and validated operator descriptor.
type Descriptor struct {
	Info   Info
	Routes string
	// Paths holds the operations declared under openapi.paths, keyed by the
	// path relative to the operator base path.
	Paths map[string]PathItem
	// OpenAPI is the full normalised openapi fragment, used to resolve
	// internal references.
	OpenAPI map[string]any
}

// Components returns the components object of the fragment, or nil.
func (d *Descriptor) Components() map[string]any {
	if d == nil {
		return nil
	}
	components, _ := d.OpenAPI["components"].(map[string]any)
	return components
}

// SortedPaths returns the declared paths in lexical order.
func (d *Descriptor) SortedPaths() []string {
	if d == nil {
		return nil
	}
	paths := make([]string, 0, len(d.Paths))
	for p := range d.Paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// SortedMethods returns the methods of a path item in lexical order.
func (p PathItem) SortedMethods() []string {
	methods := make([]string, 0, len(p))
	for m := range p {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return methods
}

var httpMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {},
	"options": {}, "head": {}, "patch": {}, "trace": {},
}

// IsHTTPMethod reports whether key names an HTTP method inside a path item.
func IsHTTPMethod(key string) bool {
	_, ok := httpMethods[strings.ToLower(key)]
	return ok
}

// Metadata records where a loaded operator came from.
type Metadata struct {
	DescriptorPath string `json:"descriptorPath"`
	RoutesPath     string `json:"routesPath"`
	Category       string `json:"category,omitempty"`
	FileName       string `json:"fileName"`
}

// Loaded is the result of loading one descriptor and its route binding file.
type Loaded struct {
	Descriptor *Descriptor
	Handler    http.Handler
	Metadata   Metadata
}

// Registered is an operator stored in the registry. Its descriptor carries
// the effective category.
type Registered struct {
	ID           string
	Descriptor   *Descriptor
	Handler      http.Handler
	Metadata     Metadata
	RegisteredAt time.Time
}

// Info is a shortcut for the descriptor info block.
func (r *Registered) Info() Info {
	if r == nil || r.Descriptor == nil {
		return Info{}
	}
	return r.Descriptor.Info
}

// Category returns the effective category of the operator.
func (r *Registered) Category() string {
	if c := r.Info().Category; c != "" {
		return c
	}
	return DefaultCategory
}

// ID builds the registry identifier category/name.
func ID(category, name string) string {
	if category == "" {
		category = DefaultCategory
	}
	return category + "/" + name
}
