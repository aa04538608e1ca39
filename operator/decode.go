package operator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/drblury/operatorhost/jsonutil"
)

// DefaultSuffixes are the file name suffixes recognised as descriptors.
var DefaultSuffixes = []string{".operator.yaml", ".operator.yml", ".operator.json", ".operator.toml"}

// ReadFile reads and decodes the descriptor at path. The file is read from
// disk on every call.
func ReadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Decode(path, data)
}

// Decode parses data using the format implied by the extension of name and
// validates the result.
func Decode(name string, data []byte) (*Descriptor, error) {
	raw, err := unmarshalRaw(name, data)
	if err != nil {
		return nil, err
	}
	return FromMap(name, raw)
}

// FromMap validates a decoded descriptor tree and builds a Descriptor from it.
func FromMap(source string, raw map[string]any) (*Descriptor, error) {
	tree, _ := normalize(raw).(map[string]any)
	if err := validate(source, tree); err != nil {
		return nil, err
	}

	info, err := decodeInfo(tree["info"])
	if err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{"info: " + err.Error()}}
	}

	openapi := tree["openapi"].(map[string]any)
	desc := &Descriptor{
		Info:    info,
		Routes:  tree["routes"].(string),
		Paths:   make(map[string]PathItem),
		OpenAPI: openapi,
	}
	for path, rawItem := range openapi["paths"].(map[string]any) {
		item := make(PathItem)
		for key, rawOp := range rawItem.(map[string]any) {
			if !IsHTTPMethod(key) {
				continue
			}
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			item[strings.ToLower(key)] = Operation(op)
		}
		desc.Paths[path] = item
	}
	return desc, nil
}

// decodeInfo tolerates scalar types that YAML infers, such as a numeric version.
func decodeInfo(raw any) (Info, error) {
	var info Info
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &info,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Info{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Info{}, err
	}
	return info, nil
}

func unmarshalRaw(name string, data []byte) (map[string]any, error) {
	var raw map[string]any
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		err = jsonutil.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(name), err)
	}
	if raw == nil {
		return nil, &ValidationError{Source: name, Problems: []string{"descriptor is empty"}}
	}
	return raw, nil
}

// normalize converts YAML style map[any]any trees into map[string]any so the
// rest of the code only deals with one shape.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[keyString(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func keyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// HasSuffix reports whether name ends with one of suffixes.
func HasSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
