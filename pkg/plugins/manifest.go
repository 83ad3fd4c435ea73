package plugins

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the conventional manifest file name. Files named
// "<anything>.plugin.yaml" are manifests too.
const ManifestFileName = "plugin.yaml"

const manifestSuffix = ".plugin.yaml"

var (
	semverRegex     = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)
	pluginNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Manifest is the on-disk plugin description
type Manifest struct {
	Name             string            `yaml:"name"`                        // Unique plugin name
	Category         Category          `yaml:"category"`                    // core, standalone, standalone-gui, host
	Host             string            `yaml:"host,omitempty"`              // Host name for the host category
	Entry            string            `yaml:"entry,omitempty"`             // Factory key, defaults to name
	Requires         []string          `yaml:"requires,omitempty"`          // Strict requirements
	OptionalRequires []string          `yaml:"optional_requires,omitempty"` // Soft requirements
	Version          string            `yaml:"version,omitempty"`           // Semver
	Author           string            `yaml:"author,omitempty"`
	Description      string            `yaml:"description,omitempty"`
	Copyright        string            `yaml:"copyright,omitempty"`
	License          string            `yaml:"license,omitempty"`
	Metadata         map[string]string `yaml:"metadata,omitempty"`
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsManifestFile reports whether a file name denotes a plugin manifest
func IsManifestFile(name string) bool {
	return name == ManifestFileName || (strings.HasSuffix(name, manifestSuffix) && len(name) > len(manifestSuffix))
}

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML. Unknown fields are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// SaveManifest saves a plugin manifest to a file
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest checks a manifest for correctness. Entries with severity
// "error" make the manifest unusable.
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.Name == "" {
		errors = append(errors, ValidationError{
			Field:    "name",
			Message:  "Plugin name is required",
			Severity: "error",
		})
	} else if !pluginNameRegex.MatchString(manifest.Name) {
		errors = append(errors, ValidationError{
			Field:    "name",
			Message:  "Plugin name must start with a letter or digit and contain only letters, digits, '.', '_' or '-'",
			Severity: "error",
		})
	}

	if manifest.Category == "" {
		errors = append(errors, ValidationError{
			Field:    "category",
			Message:  "Category is required",
			Severity: "error",
		})
	} else if !manifest.Category.Valid() {
		errors = append(errors, ValidationError{
			Field:    "category",
			Message:  fmt.Sprintf("Invalid category: %s (expected core, standalone, standalone-gui or host)", manifest.Category),
			Severity: "error",
		})
	}

	if manifest.Category == CategoryHost && manifest.Host == "" {
		errors = append(errors, ValidationError{
			Field:    "host",
			Message:  "Host is required for host plugins",
			Severity: "error",
		})
	}
	if manifest.Category != CategoryHost && manifest.Host != "" {
		errors = append(errors, ValidationError{
			Field:    "host",
			Message:  "Host is ignored unless category is host",
			Severity: "warning",
		})
	}

	for _, field := range []struct {
		name string
		list []string
	}{
		{"requires", manifest.Requires},
		{"optional_requires", manifest.OptionalRequires},
	} {
		for _, r := range field.list {
			if !pluginNameRegex.MatchString(r) {
				errors = append(errors, ValidationError{
					Field:    field.name,
					Message:  fmt.Sprintf("Invalid plugin name: %q", r),
					Severity: "error",
				})
			}
		}
	}

	if manifest.Version != "" && !isValidSemver(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:    "version",
			Message:  "Version must be valid semantic version (e.g., '1.0.0')",
			Severity: "warning",
		})
	}

	if manifest.License == "" {
		errors = append(errors, ValidationError{
			Field:    "license",
			Message:  "License should be specified",
			Severity: "warning",
		})
	}

	return errors
}

// hasErrors reports whether any validation entry is an error
func hasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

// newDescriptor builds a descriptor from a validated manifest
func newDescriptor(m *Manifest, root, manifestPath string) *Descriptor {
	entry := m.Entry
	if entry == "" {
		entry = m.Name
	}

	extra := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		extra[k] = v
	}

	return &Descriptor{
		Name:             m.Name,
		SourceLocation:   root,
		ManifestPath:     manifestPath,
		Dir:              filepath.Dir(manifestPath),
		Requires:         dedupe(m.Requires),
		OptionalRequires: dedupe(m.OptionalRequires),
		Category:         m.Category,
		Host:             m.Host,
		Entry:            entry,
		Metadata: Metadata{
			Author:      m.Author,
			Version:     m.Version,
			Description: m.Description,
			Copyright:   m.Copyright,
			License:     m.License,
			Extra:       extra,
		},
	}
}

// dedupe removes repeats while keeping first-seen order
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
