// Package pagejs converts values returned by in-page functions into Go types.
package pagejs

import (
	"encoding/json"
	"fmt"
)

// Decode re-encodes raw (maps, slices and float64s produced by the page
// executor) as JSON and unmarshals it into T.
func Decode[T any](raw any) (T, error) {
	var out T

	if raw == nil {
		return out, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode page result: %w", err)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode page result: %w", err)
	}

	return out, nil
}

// Plain converts v into the JSON-shaped values (maps, slices, strings,
// float64s, bools) the page boundary can carry.
func Plain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode page argument: %w", err)
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode page argument: %w", err)
	}

	return out, nil
}
