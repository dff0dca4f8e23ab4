package types

// JSONMap is a free-form jsonb bag used for order metadata and event parameters.
type JSONMap map[string]any

// Clone returns a shallow copy. Nested values are shared; callers that mutate
// nested structures must copy them first.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	clone := make(JSONMap, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
