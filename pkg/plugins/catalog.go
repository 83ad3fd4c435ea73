package plugins

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CatalogEntry is the winning descriptor for a name plus the descriptors it shadows
type CatalogEntry struct {
	Descriptor *Descriptor   `json:"descriptor"`
	Shadowed   []*Descriptor `json:"shadowed,omitempty"`
}

// Catalog is the result of one scan: exactly one winning descriptor per name
type Catalog struct {
	Roots       []string    `json:"roots"`
	Diagnostics Diagnostics `json:"diagnostics"`
	// Err is set when the scan was interrupted by context cancellation
	Err error `json:"-"`

	entries map[string]*CatalogEntry
}

// ScanOptions tunes a catalog scan
type ScanOptions struct {
	Logger *logrus.Logger
}

// Get returns the entry for name
func (c *Catalog) Get(name string) (*CatalogEntry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.entries[name]
	return e, ok
}

// Descriptor returns the winning descriptor for name
func (c *Catalog) Descriptor(name string) (*Descriptor, bool) {
	e, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	return e.Descriptor, true
}

// Names returns the catalog names in ascending order
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the winning descriptors ordered by name
func (c *Catalog) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, c.Len())
	for _, name := range c.Names() {
		out = append(out, c.entries[name].Descriptor)
	}
	return out
}

// Len returns the number of distinct plugin names
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Scan walks each root recursively for manifests. Roots are in increasing
// priority, so a name found under a later root shadows the earlier one.
// Unparsable manifests become DescriptorParseError diagnostics and the scan
// continues. No plugin code runs during a scan.
func Scan(ctx context.Context, dirs []string, opts ScanOptions) *Catalog {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	c := &Catalog{
		Roots:   append([]string(nil), dirs...),
		entries: make(map[string]*CatalogEntry),
	}

	for _, root := range dirs {
		found, err := scanRoot(ctx, root, c, log)
		if err != nil {
			c.Err = err
			log.WithError(err).WithField("path", root).Warn("Plugin scan interrupted")
			break
		}
		c.merge(root, found)
	}

	return c
}

// scanRoot collects valid descriptors under one root, grouped by name
func scanRoot(ctx context.Context, root string, c *Catalog, log *logrus.Logger) (map[string][]*Descriptor, error) {
	found := make(map[string][]*Descriptor)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.WithError(walkErr).WithField("path", path).Warn("Failed to read plugin directory")
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsManifestFile(d.Name()) {
			return nil
		}

		desc, diag := readDescriptor(root, path)
		if diag != nil {
			c.Diagnostics = append(c.Diagnostics, *diag)
			logDiagnostic(log, *diag)
			return nil
		}

		log.WithFields(logrus.Fields{
			"plugin": desc.Name,
			"path":   path,
		}).Debug("Discovered plugin manifest")
		found[desc.Name] = append(found[desc.Name], desc)
		return nil
	})

	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("scan of %s cancelled: %w", root, ctx.Err())
	}
	return found, nil
}

func readDescriptor(root, path string) (*Descriptor, *Diagnostic) {
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, &Diagnostic{
			Kind:     KindDescriptorParseError,
			Severity: SeverityWarning,
			Path:     path,
			Message:  err.Error(),
			Err:      err,
		}
	}

	problems := ValidateManifest(manifest)
	if hasErrors(problems) {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			if p.Severity == "error" {
				msgs = append(msgs, p.String())
			}
		}
		return nil, &Diagnostic{
			Kind:     KindDescriptorParseError,
			Severity: SeverityWarning,
			Plugin:   manifest.Name,
			Path:     path,
			Message:  "invalid manifest: " + strings.Join(msgs, "; "),
		}
	}

	return newDescriptor(manifest, root, path), nil
}

// merge folds one root's findings into the catalog
func (c *Catalog) merge(root string, found map[string][]*Descriptor) {
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		descs := found[name]
		sort.Slice(descs, func(i, j int) bool {
			return descs[i].ManifestPath < descs[j].ManifestPath
		})

		winner := descs[0]
		shadowed := append([]*Descriptor(nil), descs[1:]...)

		if len(shadowed) > 0 {
			paths := make([]string, 0, len(descs))
			for _, d := range descs {
				paths = append(paths, d.ManifestPath)
			}
			c.Diagnostics = append(c.Diagnostics, Diagnostic{
				Kind:     KindOverrideAmbiguous,
				Severity: SeverityWarning,
				Plugin:   name,
				Path:     root,
				Related:  paths,
				Message:  fmt.Sprintf("%d manifests for %q under one root; using %s", len(descs), name, winner.ManifestPath),
			})
		}

		if prev, ok := c.entries[name]; ok {
			shadowed = append(shadowed, prev.Descriptor)
			shadowed = append(shadowed, prev.Shadowed...)
		}

		c.entries[name] = &CatalogEntry{
			Descriptor: winner,
			Shadowed:   shadowed,
		}
	}
}
