package routes

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// File is the decoded form of a route binding file.
type File struct {
	Routes  []*Route `hcl:"route,block"`
	Proxies []*Proxy `hcl:"proxy,block"`
}

// Route binds one method and path.
type Route struct {
	Method      string            `hcl:"method,label"`
	Path        string            `hcl:"path,label"`
	Handler     *string           `hcl:"handler,optional"`
	Status      *int              `hcl:"status,optional"`
	Body        *string           `hcl:"body,optional"`
	ContentType *string           `hcl:"content_type,optional"`
	Headers     map[string]string `hcl:"headers,optional"`
}

// Proxy forwards every request under Prefix to Upstream.
type Proxy struct {
	Prefix   string `hcl:"prefix,label"`
	Upstream string `hcl:"upstream"`
}

// ParseFile parses and decodes the route binding file at path. A new parser
// is used for every call so edits on disk are always picked up.
func ParseFile(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, diags)
	}

	var f File
	diags = gohcl.DecodeBody(hclFile.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode route file %s: %w", path, diags)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid route file %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Routes) == 0 && len(f.Proxies) == 0 {
		return ErrNoRoutes
	}
	for _, r := range f.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %s %q: path must start with /", r.Method, r.Path)
		}
		static := r.Status != nil || r.Body != nil
		if r.Handler != nil && static {
			return fmt.Errorf("route %s %s: handler cannot be combined with a static response", r.Method, r.Path)
		}
		if r.Handler == nil && !static {
			return fmt.Errorf("route %s %s: handler or static response required", r.Method, r.Path)
		}
	}
	for _, p := range f.Proxies {
		if !strings.HasPrefix(p.Prefix, "/") {
			return fmt.Errorf("proxy %q: prefix must start with /", p.Prefix)
		}
		if strings.TrimSpace(p.Upstream) == "" {
			return fmt.Errorf("proxy %q: upstream is required", p.Prefix)
		}
	}
	return nil
}

// pattern returns the http.ServeMux pattern of the route.
func (r *Route) pattern() string {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" || method == "*" || method == "ANY" {
		return r.Path
	}
	return method + " " + r.Path
}
