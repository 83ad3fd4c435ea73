package plugins

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/jukebox/pkg/dependencies"
	"github.com/sirupsen/logrus"
)

// Kind classifies a diagnostic
type Kind string

const (
	KindPathInvalid                       Kind = "PathInvalid"
	KindDescriptorParseError              Kind = "DescriptorParseError"
	KindOverrideAmbiguous                 Kind = "OverrideAmbiguous"
	KindMissingDependency                 Kind = "MissingDependency"
	KindSelfDependency                    Kind = "SelfDependency"
	KindCycleDetected                     Kind = "CycleDetected"
	KindDependencyUnloadable              Kind = "DependencyUnloadable"
	KindHostUnavailable                   Kind = "HostUnavailable"
	KindDependencySkipped                 Kind = "DependencySkipped"
	KindActivationFailure                 Kind = "ActivationFailure"
	KindActivationTimeout                 Kind = "ActivationTimeout"
	KindDependencyFailedPropagation       Kind = "DependencyFailedPropagation"
	KindDeactivationFailure               Kind = "DeactivationFailure"
	KindSchemaViolation                   Kind = "SchemaViolation"
	KindInternalPlannerInvariantViolation Kind = "InternalPlannerInvariantViolation"
)

// Fatal reports whether the kind aborts a discovery cycle
func (k Kind) Fatal() bool {
	return k == KindInternalPlannerInvariantViolation
}

// Severity levels for diagnostics
const (
	SeverityDebug   = "debug"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityFatal   = "fatal"
)

// Diagnostic is one problem report. Per-plugin problems are data, never panics.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity string   `json:"severity"`
	Plugin   string   `json:"plugin,omitempty"`
	Path     string   `json:"path,omitempty"`
	Related  []string `json:"related,omitempty"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Severity, d.Kind)
	if d.Plugin != "" {
		fmt.Fprintf(&b, " %s", d.Plugin)
	}
	if d.Path != "" {
		fmt.Fprintf(&b, " (%s)", d.Path)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// Diagnostics is a list of diagnostics with query helpers
type Diagnostics []Diagnostic

// ByKind returns the diagnostics of one kind
func (ds Diagnostics) ByKind(kind Kind) Diagnostics {
	out := make(Diagnostics, 0)
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// ForPlugin returns the diagnostics attached to one plugin
func (ds Diagnostics) ForPlugin(name string) Diagnostics {
	out := make(Diagnostics, 0)
	for _, d := range ds {
		if d.Plugin == name {
			out = append(out, d)
		}
	}
	return out
}

// HasFatal reports whether any diagnostic is fatal
func (ds Diagnostics) HasFatal() bool {
	for _, d := range ds {
		if d.Kind.Fatal() {
			return true
		}
	}
	return false
}

func fromIssue(is dependencies.Issue) Diagnostic {
	return Diagnostic{
		Kind:     Kind(is.Kind),
		Severity: is.Severity,
		Plugin:   is.Plugin,
		Related:  is.Related,
		Message:  is.Message,
	}
}

func logDiagnostic(log logrus.FieldLogger, d Diagnostic) {
	entry := log.WithField("kind", d.Kind)
	if d.Plugin != "" {
		entry = entry.WithField("plugin", d.Plugin)
	}
	if d.Path != "" {
		entry = entry.WithField("path", d.Path)
	}
	if d.Err != nil {
		entry = entry.WithError(d.Err)
	}

	switch d.Severity {
	case SeverityDebug:
		entry.Debug(d.Message)
	case SeverityInfo:
		entry.Info(d.Message)
	case SeverityWarning:
		entry.Warn(d.Message)
	default:
		entry.Error(d.Message)
	}
}
