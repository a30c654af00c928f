package codec

import "gopkg.in/yaml.v3"

// YAML wraps gopkg.in/yaml.v3, the teacher's YAML dependency
// (internal/config/yaml_config.go and the root metadata config).
type YAML struct{}

func (YAML) Name() string         { return "yaml" }
func (YAML) Extensions() []string { return []string{"yaml", "yml"} }

func (YAML) Encode(value any, _ map[string]any) ([]byte, error) {
	return yaml.Marshal(value)
}

func (YAML) Decode(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalizeYAML(v), nil
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already native)
// and nested map[interface{}]interface{} from older decodes into plain
// map[string]any so downstream code only ever deals with one map type.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAML(vv)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
