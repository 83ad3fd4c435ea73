package validation

import (
	"fmt"
	"strings"
)

// ViolationKind classifies a failed configuration check
type ViolationKind string

const (
	ViolationMissingRequired  ViolationKind = "MissingRequired"
	ViolationTypeMismatch     ViolationKind = "TypeMismatch"
	ViolationOutOfRange       ViolationKind = "OutOfRange"
	ViolationLengthOutOfRange ViolationKind = "LengthOutOfRange"
	ViolationNotInEnum        ViolationKind = "NotInEnum"
	ViolationInvalidItem      ViolationKind = "InvalidItem"
	ViolationUnknownKey       ViolationKind = "UnknownKey"
)

// Violation is a single failed check against one configuration key
type Violation struct {
	Key    string        `json:"key"`
	Kind   ViolationKind `json:"kind"`
	Detail string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Key, v.Kind, v.Detail)
}

// ViolationError wraps a non-empty violation list so it can travel as an error
type ViolationError struct {
	Plugin     string
	Violations []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	if e.Plugin == "" {
		return fmt.Sprintf("invalid configuration: %s", strings.Join(parts, "; "))
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Plugin, strings.Join(parts, "; "))
}

func violation(key string, kind ViolationKind, format string, args ...any) *Violation {
	return &Violation{Key: key, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
