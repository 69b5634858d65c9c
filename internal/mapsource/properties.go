package mapsource

// PropertyBag carries arbitrary scalar properties declared in map metadata.
// Values are normalized to string, int64, float64 or bool at parse time so
// live objects never grow unchecked dynamic fields.
type PropertyBag map[string]any

// Normalize coerces parser-specific scalar types into the canonical set and
// drops non-scalar values.
func (b PropertyBag) Normalize() PropertyBag {
	if b == nil {
		return nil
	}
	out := make(PropertyBag, len(b))
	for k, v := range b {
		switch t := v.(type) {
		case string:
			out[k] = t
		case bool:
			out[k] = t
		case int:
			out[k] = int64(t)
		case int64:
			out[k] = t
		case float64:
			out[k] = t
		case float32:
			out[k] = float64(t)
		}
	}
	return out
}

// Merge returns a copy of b with over's entries applied on top.
func (b PropertyBag) Merge(over PropertyBag) PropertyBag {
	if len(b) == 0 && len(over) == 0 {
		return nil
	}
	out := make(PropertyBag, len(b)+len(over))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (b PropertyBag) String(key string) (string, bool) {
	v, ok := b[key].(string)
	return v, ok
}

func (b PropertyBag) Int(key string) (int64, bool) {
	switch v := b[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func (b PropertyBag) Float(key string) (float64, bool) {
	switch v := b[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (b PropertyBag) Bool(key string) (bool, bool) {
	v, ok := b[key].(bool)
	return v, ok
}
