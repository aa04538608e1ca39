package operator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnsupportedFormat is returned for descriptor files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported descriptor format")

// ValidationError lists every structural problem found in a descriptor.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid operator descriptor %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func validate(source string, tree map[string]any) error {
	var problems []string

	info, ok := tree["info"].(map[string]any)
	if !ok {
		problems = append(problems, "info must be an object")
	} else if name, _ := info["name"].(string); strings.TrimSpace(name) == "" {
		problems = append(problems, "info.name must be a non-empty string")
	}

	if routes, _ := tree["routes"].(string); strings.TrimSpace(routes) == "" {
		problems = append(problems, "routes must be a non-empty string")
	}

	openapi, ok := tree["openapi"].(map[string]any)
	if !ok {
		problems = append(problems, "openapi must be an object")
	} else {
		paths, ok := openapi["paths"].(map[string]any)
		switch {
		case !ok:
			problems = append(problems, "openapi.paths must be an object")
		case len(paths) == 0:
			problems = append(problems, "openapi.paths must declare at least one path")
		default:
			for _, p := range slices.Sorted(maps.Keys(paths)) {
				item := paths[p]
				if !strings.HasPrefix(p, "/") {
					problems = append(problems, fmt.Sprintf("openapi.paths[%q] must start with /", p))
				}
				if _, ok := item.(map[string]any); !ok {
					problems = append(problems, fmt.Sprintf("openapi.paths[%q] must be an object", p))
				}
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Source: source, Problems: problems}
}
