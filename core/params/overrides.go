package params

import (
	"encoding/json"
	"fmt"
)

// WithOverrides returns a copy of p with the overrides applied and
// validated. Keys follow the JSON names of Params; nested objects merge
// field by field, except "regions" which replaces the whole list.
func (p Params) WithOverrides(overrides map[string]any) (Params, error) {
	out := p.Clone()
	if len(overrides) == 0 {
		return out, out.Validate()
	}
	if _, ok := overrides["regions"]; ok {
		out.Regions = nil
	}
	b, err := json.Marshal(overrides)
	if err != nil {
		return out, fmt.Errorf("params overrides: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("params overrides: %w", err)
	}
	return out, out.Validate()
}
