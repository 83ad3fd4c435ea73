package validation

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heartbeatSchema = `
interval:
  type: integer
  min: 1
  max: 3600
  default: 30
  description: seconds between beats
label:
  type: string
  max_length: 16
  optional: true
level:
  type: enum
  values: [debug, info, warn]
  default: info
ratio:
  type: float
  min: 0
  max: 1
verbose:
  type: boolean
  default: false
targets:
  type: list
  item: string
  min_length: 1
  default: [stdout]
`

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema([]byte(heartbeatSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"interval", "label", "level", "ratio", "targets", "verbose"}, schema.Keys())

	interval, ok := schema.Field("interval")
	require.True(t, ok)
	assert.Equal(t, KindInteger, interval.Constraint.Kind())
	assert.Equal(t, IntegerConstraint{Min: int64p(1), Max: int64p(3600)}, interval.Constraint)
	assert.True(t, interval.HasDefault)
	assert.Equal(t, 30, interval.Default)
	assert.Equal(t, "seconds between beats", interval.Description)

	label, _ := schema.Field("label")
	assert.True(t, label.Optional)
	assert.False(t, label.HasDefault)

	verbose, _ := schema.Field("verbose")
	assert.True(t, verbose.HasDefault)
	assert.Equal(t, false, verbose.Default)

	targets, _ := schema.Field("targets")
	assert.Equal(t, ListConstraint{Item: KindString, MinLength: intp(1)}, targets.Constraint)
	assert.Equal(t, []any{"stdout"}, targets.Default)

	assert.Equal(t, [][2]string{{"ratio", "MissingRequired"}}, kindsOf(Validate(schema, Values{})))
}

func TestParseSchema_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "a: [b"},
		{"missing type", "a:\n  min: 1\n"},
		{"unknown type", "a:\n  type: date\n"},
		{"fractional integer bound", "a:\n  type: integer\n  min: 1.5\n"},
		{"inverted bounds", "a:\n  type: integer\n  min: 5\n  max: 1\n"},
		{"empty enum", "a:\n  type: enum\n"},
		{"bad list item", "a:\n  type: list\n  item: enum\n"},
		{"negative length", "a:\n  type: string\n  min_length: -1\n"},
		{"default violates constraint", "a:\n  type: enum\n  values: [x]\n  default: y\n"},
		{"unknown constraint key", "a:\n  type: integer\n  maximum: 5\n"},
		{"integer bound above int64", "a:\n  type: integer\n  max: 9223372036854775808\n"},
		{"integer bound far above int64", "a:\n  type: integer\n  max: 1e19\n"},
		{"non-numeric bound", "a:\n  type: float\n  min: low\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseSchema_LargeIntegerBounds(t *testing.T) {
	schema, err := ParseSchema([]byte("id:\n  type: integer\n  min: 9007199254740993\n  max: 9223372036854775807\n"))
	require.NoError(t, err)

	id, _ := schema.Field("id")
	c := id.Constraint.(IntegerConstraint)
	assert.Equal(t, int64(9007199254740993), *c.Min)
	assert.Equal(t, int64(math.MaxInt64), *c.Max)

	assert.Equal(t, [][2]string{{"id", "OutOfRange"}},
		kindsOf(Validate(schema, Values{"id": int64(9007199254740992)})))
	assert.Empty(t, Validate(schema, Values{"id": int64(9007199254740993)}))
}

func TestParseSchema_Empty(t *testing.T) {
	schema, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, schema.Len())
}

func TestLoadSchemaAndValues(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "heartbeat"+SchemaExtension)
	require.NoError(t, os.WriteFile(schemaPath, []byte(heartbeatSchema), 0644))

	schema, err := LoadSchema(schemaPath)
	require.NoError(t, err)
	assert.Equal(t, 6, schema.Len())

	_, err = LoadSchema(filepath.Join(dir, "missing.schema.yaml"))
	assert.Error(t, err)

	values, err := LoadValues(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, values)

	valuesPath := filepath.Join(dir, "heartbeat.yaml")
	require.NoError(t, os.WriteFile(valuesPath, []byte("interval: 5\nratio: 0.25\n"), 0644))
	values, err = LoadValues(valuesPath)
	require.NoError(t, err)
	assert.Empty(t, Validate(schema, values))
}

func TestViolationError(t *testing.T) {
	err := &ViolationError{
		Plugin: "heartbeat",
		Violations: []Violation{
			{Key: "port", Kind: ViolationOutOfRange, Detail: "150 is outside [0, 100]"},
		},
	}
	assert.Equal(t, "invalid configuration for heartbeat: port: OutOfRange: 150 is outside [0, 100]", err.Error())
}
