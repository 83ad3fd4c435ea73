package validation

// Int returns the key as an int64 when it holds a whole number
func (v Values) Int(key string) (int64, bool) {
	return toInt64(v[key])
}

// String returns the key when it holds a string
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Bool returns the key when it holds a boolean
func (v Values) Bool(key string) (bool, bool) {
	b, ok := v[key].(bool)
	return b, ok
}

// Strings returns the key as a string slice when every element is a string
func (v Values) Strings(key string) ([]string, bool) {
	items, ok := toSlice(v[key])
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
