package validation

// Get retrieves the raw value for the provided field.
func (r Record) Get(field string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[field]
	return v, ok
}

// String extracts a string value, unwrapping pointer types when possible.
func (r Record) String(field string) (string, bool) {
	v, ok := r.Get(field)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case *string:
		if val == nil {
			return "", false
		}
		return *val, true
	default:
		return "", false
	}
}

// Int64 extracts an integer value of any width, unwrapping pointer types.
// The second result is false when the field is absent, nil, or not an integer.
func (r Record) Int64(field string) (int64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

// Has reports whether the field exists in the record map.
func (r Record) Has(field string) bool {
	_, ok := r.Get(field)
	return ok
}

func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case *int:
		if val == nil {
			return 0, false
		}
		return int64(*val), true
	case *int64:
		if val == nil {
			return 0, false
		}
		return *val, true
	default:
		return 0, false
	}
}
