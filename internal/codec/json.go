package codec

import "encoding/json"

// JSON serializes collection snapshots as a map[id]record object, the
// teacher's primary wire format (internal/jsonl uses one JSON value per
// line; here a whole-file snapshot is one JSON object).
type JSON struct{}

func (JSON) Name() string         { return "json" }
func (JSON) Extensions() []string { return []string{"json"} }

func (JSON) Encode(value any, opts map[string]any) ([]byte, error) {
	if pretty, _ := opts["pretty"].(bool); pretty {
		return json.MarshalIndent(value, "", "  ")
	}
	return json.Marshal(value)
}

func (JSON) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
