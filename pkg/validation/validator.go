package validation

import (
	"math"
	"reflect"
	"sort"
	"unicode/utf8"
)

// Validate checks values against schema and returns every violation found.
// Schema keys are reported in ascending order, followed by unknown keys in
// ascending order. A nil schema declares no keys.
func Validate(schema *Schema, values Values) []Violation {
	var out []Violation

	for _, key := range schema.Keys() {
		field, _ := schema.Field(key)
		value, present := values[key]
		if !present {
			if !field.HasDefault && !field.Optional {
				out = append(out, *violation(key, ViolationMissingRequired, "required key is not set"))
			}
			continue
		}
		if v := field.Constraint.check(key, value); v != nil {
			out = append(out, *v)
		}
	}

	unknown := make([]string, 0)
	for key := range values {
		if _, ok := schema.Field(key); !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		out = append(out, *violation(key, ViolationUnknownKey, "key is not declared by the schema"))
	}

	return out
}

// Defaults returns the declared default for every schema key absent from
// values. The supplied values are not modified.
func Defaults(schema *Schema, values Values) Values {
	out := Values{}
	for _, key := range schema.Keys() {
		field, _ := schema.Field(key)
		if _, present := values[key]; present || !field.HasDefault {
			continue
		}
		out[key] = cloneValue(field.Default)
	}
	return out
}

// Effective returns a new map holding values merged with the suggested defaults
func Effective(schema *Schema, values Values) Values {
	out := make(Values, len(values))
	for k, v := range values {
		out[k] = v
	}
	for k, v := range Defaults(schema, values) {
		out[k] = v
	}
	return out
}

// Repair returns a copy of values where every key that fails its constraint
// is replaced by its default, or dropped when it has none. Unknown keys are
// kept. The returned violations are those that remain after repair.
func Repair(schema *Schema, values Values) (Values, []Violation) {
	out := make(Values, len(values))
	for k, v := range values {
		out[k] = v
	}

	for _, v := range Validate(schema, values) {
		field, ok := schema.Field(v.Key)
		if !ok || v.Kind == ViolationMissingRequired {
			continue
		}
		if field.HasDefault {
			out[v.Key] = cloneValue(field.Default)
		} else {
			delete(out, v.Key)
		}
	}

	return out, Validate(schema, out)
}

func (c IntegerConstraint) check(key string, value any) *Violation {
	n, ok := toInt64(value)
	if !ok {
		return violation(key, ViolationTypeMismatch, "expected integer, got %s", typeName(value))
	}
	if (c.Min != nil && n < *c.Min) || (c.Max != nil && n > *c.Max) {
		return violation(key, ViolationOutOfRange, "%d is outside %s", n, intRange(c.Min, c.Max))
	}
	return nil
}

func (c FloatConstraint) check(key string, value any) *Violation {
	f, ok := toFloat64(value)
	if !ok {
		return violation(key, ViolationTypeMismatch, "expected float, got %s", typeName(value))
	}
	if (c.Min != nil && f < *c.Min) || (c.Max != nil && f > *c.Max) {
		return violation(key, ViolationOutOfRange, "%g is outside %s", f, floatRange(c.Min, c.Max))
	}
	return nil
}

func (c StringConstraint) check(key string, value any) *Violation {
	s, ok := value.(string)
	if !ok {
		return violation(key, ViolationTypeMismatch, "expected string, got %s", typeName(value))
	}
	if n := utf8.RuneCountInString(s); outsideLength(n, c.MinLength, c.MaxLength) {
		return violation(key, ViolationLengthOutOfRange, "length %d is outside %s", n, lengthRange(c.MinLength, c.MaxLength))
	}
	return nil
}

func (c EnumConstraint) check(key string, value any) *Violation {
	s, ok := value.(string)
	if !ok {
		return violation(key, ViolationTypeMismatch, "expected one of %v, got %s", c.Values, typeName(value))
	}
	for _, allowed := range c.Values {
		if s == allowed {
			return nil
		}
	}
	return violation(key, ViolationNotInEnum, "%q is not one of %v", s, c.Values)
}

func (BooleanConstraint) check(key string, value any) *Violation {
	if _, ok := value.(bool); !ok {
		return violation(key, ViolationTypeMismatch, "expected boolean, got %s", typeName(value))
	}
	return nil
}

func (c ListConstraint) check(key string, value any) *Violation {
	items, ok := toSlice(value)
	if !ok {
		return violation(key, ViolationTypeMismatch, "expected list, got %s", typeName(value))
	}
	if outsideLength(len(items), c.MinLength, c.MaxLength) {
		return violation(key, ViolationLengthOutOfRange, "length %d is outside %s", len(items), lengthRange(c.MinLength, c.MaxLength))
	}
	for i, item := range items {
		if !itemMatches(c.Item, item) {
			want := string(c.Item)
			if want == "" {
				want = "scalar"
			}
			return violation(key, ViolationInvalidItem, "item %d: expected %s, got %s", i, want, typeName(item))
		}
	}
	return nil
}

func itemMatches(kind Kind, item any) bool {
	switch kind {
	case KindInteger:
		_, ok := toInt64(item)
		return ok
	case KindFloat:
		_, ok := toFloat64(item)
		return ok
	case KindString:
		_, ok := item.(string)
		return ok
	case KindBoolean:
		_, ok := item.(bool)
		return ok
	default:
		switch item.(type) {
		case nil, map[string]any, []any:
			return false
		}
		return true
	}
}

// maxInt64Float is 2^63, the first float64 above math.MaxInt64. The constant
// math.MaxInt64 itself rounds up to it when converted.
const maxInt64Float = 1 << 63

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return toInt64(float64(n))
	case float64:
		// JSON decoding yields float64 for every number
		if n != math.Trunc(n) || n >= maxInt64Float || n < -maxInt64Float {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func cloneValue(v any) any {
	if items, ok := v.([]any); ok {
		return append([]any(nil), items...)
	}
	return v
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	}
	if _, ok := toInt64(v); ok {
		return "integer"
	}
	if _, ok := toFloat64(v); ok {
		return "float"
	}
	return reflect.TypeOf(v).String()
}
