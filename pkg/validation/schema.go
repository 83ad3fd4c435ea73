package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind identifies the type of a configuration value
type Kind string

const (
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindBoolean Kind = "boolean"
	KindList    Kind = "list"
)

// SchemaExtension is the file suffix for plugin schema files
const SchemaExtension = ".schema.yaml"

// Values is a flat key/value configuration supplied by the user
type Values map[string]any

// Constraint is the closed set of per-key checks. The unexported method keeps
// the set closed to the kinds declared in this package.
type Constraint interface {
	Kind() Kind
	check(key string, value any) *Violation
}

// IntegerConstraint accepts whole numbers within optional inclusive bounds
type IntegerConstraint struct {
	Min *int64
	Max *int64
}

// FloatConstraint accepts any number within optional inclusive bounds
type FloatConstraint struct {
	Min *float64
	Max *float64
}

// StringConstraint accepts strings with an optional rune-length range
type StringConstraint struct {
	MinLength *int
	MaxLength *int
}

// EnumConstraint accepts one of a fixed set of strings
type EnumConstraint struct {
	Values []string
}

// BooleanConstraint accepts true or false
type BooleanConstraint struct{}

// ListConstraint accepts a sequence whose elements all have kind Item.
// An empty Item accepts elements of any scalar kind.
type ListConstraint struct {
	Item      Kind
	MinLength *int
	MaxLength *int
}

func (IntegerConstraint) Kind() Kind { return KindInteger }
func (FloatConstraint) Kind() Kind   { return KindFloat }
func (StringConstraint) Kind() Kind  { return KindString }
func (EnumConstraint) Kind() Kind    { return KindEnum }
func (BooleanConstraint) Kind() Kind { return KindBoolean }
func (ListConstraint) Kind() Kind    { return KindList }

// Field declares the constraint for a single configuration key
type Field struct {
	Key         string
	Constraint  Constraint
	Optional    bool
	Default     any
	HasDefault  bool
	Description string
}

// Schema is the authoritative key set for one plugin's configuration
type Schema struct {
	fields map[string]*Field
	keys   []string
}

// NewSchema builds a schema from fields. Keys must be unique, every field needs
// a constraint, and declared defaults must satisfy their own constraint.
func NewSchema(fields ...*Field) (*Schema, error) {
	s := &Schema{fields: make(map[string]*Field, len(fields))}

	for _, f := range fields {
		if f == nil {
			continue
		}
		if f.Key == "" {
			return nil, fmt.Errorf("schema field has empty key")
		}
		if f.Constraint == nil {
			return nil, fmt.Errorf("schema field %q has no constraint", f.Key)
		}
		if _, exists := s.fields[f.Key]; exists {
			return nil, fmt.Errorf("duplicate schema key %q", f.Key)
		}
		if f.HasDefault {
			if v := f.Constraint.check(f.Key, f.Default); v != nil {
				return nil, fmt.Errorf("default for %q is invalid: %s", f.Key, v.Detail)
			}
		}
		s.fields[f.Key] = f
		s.keys = append(s.keys, f.Key)
	}

	sort.Strings(s.keys)
	return s, nil
}

// Keys returns the schema keys in ascending order
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Field returns the field declared for key
func (s *Schema) Field(key string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	f, ok := s.fields[key]
	return f, ok
}

// Len returns the number of declared keys
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// fieldSpec is the on-disk representation of one schema entry
type fieldSpec struct {
	Type        string    `yaml:"type"`
	Min         yaml.Node `yaml:"min"`
	Max         yaml.Node `yaml:"max"`
	MinLength   *int      `yaml:"min_length"`
	MaxLength   *int      `yaml:"max_length"`
	Values      []string  `yaml:"values"`
	Item        string    `yaml:"item"`
	Optional    bool      `yaml:"optional"`
	Default     yaml.Node `yaml:"default"`
	Description string    `yaml:"description"`
}

// ParseSchema parses a flat YAML schema document
func ParseSchema(data []byte) (*Schema, error) {
	var specs map[string]fieldSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	fields := make([]*Field, 0, len(specs))
	for key, spec := range specs {
		f, err := spec.toField(key)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	return NewSchema(fields...)
}

// LoadSchema reads and parses a schema file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	schema, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// LoadValues reads a YAML values file. A missing file yields empty values.
func LoadValues(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to read config values: %w", err)
	}
	return ParseValues(data)
}

// ParseValues parses a flat YAML mapping of configuration values
func ParseValues(data []byte) (Values, error) {
	values := Values{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config values: %w", err)
	}
	return values, nil
}

func (spec fieldSpec) toField(key string) (*Field, error) {
	f := &Field{
		Key:         key,
		Optional:    spec.Optional,
		Description: spec.Description,
	}

	switch Kind(spec.Type) {
	case KindInteger:
		c := IntegerConstraint{}
		var err error
		if c.Min, err = intBound(key, "min", &spec.Min); err != nil {
			return nil, err
		}
		if c.Max, err = intBound(key, "max", &spec.Max); err != nil {
			return nil, err
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, fmt.Errorf("schema key %q: min %d exceeds max %d", key, *c.Min, *c.Max)
		}
		f.Constraint = c
	case KindFloat:
		c := FloatConstraint{}
		var err error
		if c.Min, err = floatBound(key, "min", &spec.Min); err != nil {
			return nil, err
		}
		if c.Max, err = floatBound(key, "max", &spec.Max); err != nil {
			return nil, err
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, fmt.Errorf("schema key %q: min %g exceeds max %g", key, *c.Min, *c.Max)
		}
		f.Constraint = c
	case KindString:
		if err := checkLengthBounds(key, spec.MinLength, spec.MaxLength); err != nil {
			return nil, err
		}
		f.Constraint = StringConstraint{MinLength: spec.MinLength, MaxLength: spec.MaxLength}
	case KindEnum:
		if len(spec.Values) == 0 {
			return nil, fmt.Errorf("schema key %q: enum requires at least one value", key)
		}
		f.Constraint = EnumConstraint{Values: append([]string(nil), spec.Values...)}
	case KindBoolean:
		f.Constraint = BooleanConstraint{}
	case KindList:
		item := Kind(spec.Item)
		switch item {
		case "", KindInteger, KindFloat, KindString, KindBoolean:
		default:
			return nil, fmt.Errorf("schema key %q: unsupported list item kind %q", key, spec.Item)
		}
		if err := checkLengthBounds(key, spec.MinLength, spec.MaxLength); err != nil {
			return nil, err
		}
		f.Constraint = ListConstraint{Item: item, MinLength: spec.MinLength, MaxLength: spec.MaxLength}
	case "":
		return nil, fmt.Errorf("schema key %q: type is required", key)
	default:
		return nil, fmt.Errorf("schema key %q: unsupported type %q", key, spec.Type)
	}

	if !spec.Default.IsZero() {
		var def any
		if err := spec.Default.Decode(&def); err != nil {
			return nil, fmt.Errorf("schema key %q: invalid default: %w", key, err)
		}
		f.Default = def
		f.HasDefault = true
	}

	return f, nil
}

// intBound decodes an integer bound without passing through float64, so
// bounds beyond 2^53 stay exact.
func intBound(key, name string, node *yaml.Node) (*int64, error) {
	if node.IsZero() {
		return nil, nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("schema key %q: invalid %s: %w", key, name, err)
	}

	var v int64
	switch b := raw.(type) {
	case int:
		v = int64(b)
	case int64:
		v = b
	case float64:
		if b != math.Trunc(b) {
			return nil, fmt.Errorf("schema key %q: %s must be a whole number, got %g", key, name, b)
		}
		if b >= maxInt64Float || b < -maxInt64Float {
			return nil, fmt.Errorf("schema key %q: %s %g is out of the integer range", key, name, b)
		}
		v = int64(b)
	case uint64:
		return nil, fmt.Errorf("schema key %q: %s %d is out of the integer range", key, name, b)
	default:
		return nil, fmt.Errorf("schema key %q: %s must be a number, got %q", key, name, node.Value)
	}
	return &v, nil
}

func floatBound(key, name string, node *yaml.Node) (*float64, error) {
	if node.IsZero() {
		return nil, nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("schema key %q: invalid %s: %w", key, name, err)
	}

	var v float64
	switch b := raw.(type) {
	case int:
		v = float64(b)
	case int64:
		v = float64(b)
	case uint64:
		v = float64(b)
	case float64:
		if math.IsNaN(b) {
			return nil, fmt.Errorf("schema key %q: %s must not be NaN", key, name)
		}
		v = b
	default:
		return nil, fmt.Errorf("schema key %q: %s must be a number, got %q", key, name, node.Value)
	}
	return &v, nil
}

func checkLengthBounds(key string, min, max *int) error {
	if min != nil && *min < 0 {
		return fmt.Errorf("schema key %q: min_length must not be negative", key)
	}
	if min != nil && max != nil && *min > *max {
		return fmt.Errorf("schema key %q: min_length %d exceeds max_length %d", key, *min, *max)
	}
	return nil
}
