package codec

import "github.com/BurntSushi/toml"

// TOML wraps github.com/BurntSushi/toml, the teacher's config-file format
// (configfile.Config's sibling settings and cmd/bd's project config use
// it throughout).
type TOML struct{}

func (TOML) Name() string         { return "toml" }
func (TOML) Extensions() []string { return []string{"toml"} }

func (TOML) Encode(value any, _ map[string]any) ([]byte, error) {
	return toml.Marshal(value)
}

func (TOML) Decode(data []byte) (any, error) {
	var v map[string]any
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
