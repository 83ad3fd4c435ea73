// Package validation validates plugin configuration values against a declared schema.
//
// # Overview
//
// A Schema maps configuration keys to a Field. Each Field carries exactly one
// Constraint from a closed set of kinds, plus optionality and an optional
// default value. Validation is structural and pure: it never mutates the
// supplied values and reports every failed check as a Violation.
//
// # Constraint Kinds
//
//	integer  min / max (inclusive)
//	float    min / max (inclusive)
//	string   min_length / max_length (runes)
//	enum     values (allowed strings)
//	boolean  no options
//	list     item (element kind), min_length / max_length
//
// # Schema Files
//
// Schemas are flat YAML documents named "<plugin>.schema.yaml":
//
//	port:
//	  type: integer
//	  min: 0
//	  max: 100
//	  default: 8
//	mode:
//	  type: enum
//	  values: [quiet, loud, silent]
//	tags:
//	  type: list
//	  item: string
//	  optional: true
//
// # Usage Example
//
//	schema, err := validation.LoadSchema("addons/heartbeat/heartbeat.schema.yaml")
//	if err != nil {
//		return err
//	}
//
//	violations := validation.Validate(schema, validation.Values{"port": 150})
//	for _, v := range violations {
//		fmt.Printf("%s: %s (%s)\n", v.Key, v.Kind, v.Detail)
//	}
//
//	// Defaults are suggested, never applied in place
//	suggested := validation.Defaults(schema, values)
//	effective := validation.Effective(schema, values)
//
// # Related Packages
//
//   - pkg/plugins: Validates each plugin's user configuration before activation
package validation
