package store

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/roach88/recset/internal/dataset"
)

// marshalColumns converts an active column list to canonical JSON TEXT.
func marshalColumns(columns []string) (string, error) {
	data, err := dataset.MarshalCanonical(columns)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	return string(data), nil
}

// unmarshalColumns parses a stored column list.
func unmarshalColumns(text string) ([]string, error) {
	var columns []string
	if err := json.Unmarshal([]byte(text), &columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	if columns == nil {
		columns = []string{}
	}
	return columns, nil
}

// marshalConfig converts run parameters to canonical JSON TEXT.
// Parameters are first encoded with their JSON tags, then re-encoded
// canonically so equal parameters always store identical text.
func marshalConfig(cfg any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	data, err := dataset.MarshalCanonical(normalizeJSON(generic))
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// normalizeJSON converts decoded JSON into the value types MarshalCanonical
// accepts.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeJSON(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeJSON(elem)
		}
		return out
	default:
		return val
	}
}
