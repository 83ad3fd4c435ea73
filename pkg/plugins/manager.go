package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/jukebox/pkg/dependencies"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/validation"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Manager
type Options struct {
	// Sources are the plugin search paths in increasing priority
	Sources      []PathSource
	Registry     *Registry
	Capabilities Capabilities

	ActivationTimeout  time.Duration
	ActivationTimeouts map[string]time.Duration
	StrictConfig       bool

	// ConfigDir holds user values files named <plugin>.yaml
	ConfigDir string

	Logger      *logrus.Logger
	Recorder    observability.PluginRecorder
	SchemaCache *SchemaCache
}

// Snapshot is an immutable view of one discovery cycle and the plugin states
// at the time it was taken
type Snapshot struct {
	ID          string                 `json:"id"`
	Generation  uint64                 `json:"generation"`
	CreatedAt   time.Time              `json:"created_at"`
	Roots       []string               `json:"roots"`
	Plugins     map[string]Status      `json:"plugins"`
	Plan        *dependencies.LoadPlan `json:"plan"`
	Diagnostics Diagnostics            `json:"diagnostics"`

	Catalog  *Catalog               `json:"-"`
	Graph    *dependencies.Graph    `json:"-"`
	Analysis *dependencies.Analysis `json:"-"`
}

// Names returns the plugin names in ascending order
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Plugins))
	for name := range s.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type discovery struct {
	catalog  *Catalog
	graph    *dependencies.Graph
	analysis *dependencies.Analysis
	plan     *dependencies.LoadPlan
	diags    Diagnostics
}

// Manager is the entry point for discovering, planning, loading and
// configuring plugins. Mutations are serialized; reads use the latest
// published Snapshot and never block.
type Manager struct {
	opts     Options
	log      *logrus.Logger
	recorder observability.PluginRecorder
	schemas  *SchemaCache
	loader   *Loader

	mu         sync.Mutex
	current    *discovery
	generation uint64

	snapshot atomic.Pointer[Snapshot]
}

// NewManager creates a plugin manager
func NewManager(opts Options) *Manager {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Recorder == nil {
		opts.Recorder = observability.NopRecorder{}
	}
	if opts.SchemaCache == nil {
		opts.SchemaCache = NewSchemaCache(128, 10*time.Minute)
	}
	if opts.Capabilities == nil {
		opts.Capabilities = NewCapabilities()
	}

	m := &Manager{
		opts:     opts,
		log:      opts.Logger,
		recorder: opts.Recorder,
		schemas:  opts.SchemaCache,
	}
	m.loader = NewLoader(LoaderOptions{
		Registry:           opts.Registry,
		Logger:             opts.Logger,
		Recorder:           opts.Recorder,
		ActivationTimeout:  opts.ActivationTimeout,
		ActivationTimeouts: opts.ActivationTimeouts,
		StrictConfig:       opts.StrictConfig,
		Config:             m.configFor,
	})
	return m
}

// Discover resolves the search paths, scans them and plans the load order.
// Unloaded plugins become Discovered again so the next LoadAll starts them.
// Per-plugin problems become diagnostics. An error means the cycle was
// aborted and the previous snapshot remains current.
func (m *Manager) Discover(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.discoverLocked(ctx); err != nil {
		return nil, err
	}
	m.loader.Reset(m.current.catalog.Names())
	return m.publish(), nil
}

func (m *Manager) discoverLocked(ctx context.Context) error {
	start := time.Now()
	ctx, span := loaderTracer.Start(ctx, "plugins.discover")
	defer span.End()

	roots, diags := ResolvePaths(m.opts.Sources...)
	cat := Scan(ctx, roots, ScanOptions{Logger: m.log})
	if cat.Err != nil {
		span.RecordError(cat.Err)
		span.SetStatus(codes.Error, "scan interrupted")
		return fmt.Errorf("plugin discovery: %w", cat.Err)
	}
	diags = append(diags, cat.Diagnostics...)

	graph := dependencies.NewGraph()
	for _, d := range cat.Descriptors() {
		graph.AddNode(dependencies.Node{
			Name:             d.Name,
			Category:         string(d.Category),
			Requires:         d.Requires,
			OptionalRequires: d.OptionalRequires,
			Available:        m.available(d),
		})
	}

	analysis := graph.Analyze(dependencies.Options{
		HostReason: func(n *dependencies.Node) string {
			d, _ := cat.Descriptor(n.Name)
			return fmt.Sprintf("capability %q is not available", d.RequiredCapability())
		},
	})
	for _, is := range analysis.Issues {
		diags = append(diags, fromIssue(is))
	}

	plan, err := dependencies.Plan(graph, analysis)
	if err != nil {
		d := Diagnostic{
			Kind:     KindInternalPlannerInvariantViolation,
			Severity: SeverityFatal,
			Message:  err.Error(),
			Err:      err,
		}
		logDiagnostic(m.log, d)
		m.recorder.RecordDiagnostic(ctx, string(d.Kind), d.Severity)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(d.Kind))
		return fmt.Errorf("plugin discovery: %w", err)
	}

	for _, d := range diags {
		logDiagnostic(m.log, d)
		m.recorder.RecordDiagnostic(ctx, string(d.Kind), d.Severity)
	}

	m.loader.Sync(cat)
	m.current = &discovery{
		catalog:  cat,
		graph:    graph,
		analysis: analysis,
		plan:     plan,
		diags:    diags,
	}

	dur := time.Since(start)
	m.recorder.RecordDiscovery(ctx, dur, cat.Len())
	span.SetAttributes(
		attribute.Int("plugins.discovered", cat.Len()),
		attribute.Int("plugins.planned", len(plan.Order)),
	)
	span.SetStatus(codes.Ok, "discovered")
	m.log.WithFields(logrus.Fields{
		"roots":      len(roots),
		"plugins":    cat.Len(),
		"planned":    len(plan.Order),
		"skipped":    len(plan.Skipped),
		"unloadable": len(plan.Unloadable),
		"duration":   dur,
	}).Info("Plugin discovery complete")

	return nil
}

func (m *Manager) available(d *Descriptor) bool {
	capability := d.RequiredCapability()
	return capability == "" || m.opts.Capabilities.Has(capability)
}

// Plan returns the load plan of the latest discovery
func (m *Manager) Plan() (*dependencies.LoadPlan, error) {
	snap := m.Snapshot()
	if snap == nil {
		return nil, ErrNotDiscovered
	}
	return snap.Plan, nil
}

// LoadAll activates every planned plugin that is not active yet
func (m *Manager) LoadAll(ctx context.Context) (map[string]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNotDiscovered
	}

	ctx, span := loaderTracer.Start(ctx, "plugins.load_all",
		trace.WithAttributes(attribute.Int("plugins.planned", len(m.current.plan.Order))))
	defer span.End()

	results := m.loader.LoadAll(ctx, m.current.plan, m.current.analysis)
	m.publish()
	return results, nil
}

// Rescan rediscovers and activates whatever became loadable. Active plugins
// are left running.
func (m *Manager) Rescan(ctx context.Context) (map[string]Result, error) {
	if _, err := m.Discover(ctx); err != nil {
		return nil, err
	}
	return m.LoadAll(ctx)
}

// UnloadAll deactivates every active plugin in reverse activation order
func (m *Manager) UnloadAll(ctx context.Context) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := loaderTracer.Start(ctx, "plugins.unload_all")
	defer span.End()

	results := m.loader.UnloadAll(ctx)
	if m.current != nil {
		m.publish()
	}
	return results
}

// Reload unloads name together with every active or failed plugin that
// depends on it, rediscovers, and loads them again in the new plan order.
// Other unloaded plugins stay unloaded. The result map covers every plugin
// of the new plan.
func (m *Manager) Reload(ctx context.Context, name string) (map[string]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNotDiscovered
	}
	if !m.current.graph.Has(name) && m.loader.State(name) == "" {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	ctx, span := loaderTracer.Start(ctx, "plugins.reload",
		trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	targets := []string{name}
	for _, dep := range m.current.graph.GetTransitiveDependents(name) {
		switch m.loader.State(dep.Plugin) {
		case StateActive, StateFailed:
			targets = append(targets, dep.Plugin)
		}
	}

	m.log.WithFields(logrus.Fields{
		"plugin":  name,
		"targets": targets,
	}).Info("Reloading plugin")

	m.loader.Unload(ctx, targets)
	m.schemas.Purge()

	if err := m.discoverLocked(ctx); err != nil {
		span.RecordError(err)
		m.publish()
		return nil, err
	}
	m.loader.Reset(targets)

	results := m.loader.LoadAll(ctx, m.current.plan, m.current.analysis)
	m.publish()
	return results, nil
}

// ValidateConfig checks values against the named plugin's schema. A plugin
// without a schema accepts no keys.
func (m *Manager) ValidateConfig(name string, values validation.Values) ([]validation.Violation, error) {
	desc, err := m.descriptor(name)
	if err != nil {
		return nil, err
	}
	schema, err := m.schemas.Load(desc.SchemaPath())
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	return validation.Validate(schema, values), nil
}

// Config returns the named plugin's effective configuration: the user's
// values merged with schema defaults, plus any violations
func (m *Manager) Config(name string) (validation.Values, []validation.Violation, error) {
	desc, err := m.descriptor(name)
	if err != nil {
		return nil, nil, err
	}
	schema, values, err := m.configFor(desc)
	if err != nil {
		return nil, nil, err
	}
	return validation.Effective(schema, values), validation.Validate(schema, values), nil
}

// ConfigPath returns where the user's values for name are read from
func (m *Manager) ConfigPath(name string) string {
	if m.opts.ConfigDir == "" {
		return ""
	}
	return filepath.Join(m.opts.ConfigDir, name+".yaml")
}

func (m *Manager) configFor(d *Descriptor) (*validation.Schema, validation.Values, error) {
	schema, err := m.schemas.Load(d.SchemaPath())
	if err != nil {
		return nil, nil, fmt.Errorf("schema: %w", err)
	}

	values := validation.Values{}
	if path := m.ConfigPath(d.Name); path != "" {
		values, err = validation.LoadValues(path)
		if err != nil {
			return nil, nil, fmt.Errorf("values: %w", err)
		}
	}
	return schema, values, nil
}

// Get returns an active plugin instance
func (m *Manager) Get(name string) (Plugin, error) {
	if p, ok := m.loader.Lookup(name); ok {
		return p, nil
	}
	if _, err := m.descriptor(name); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotActive, name)
}

// Status returns the named plugin's status from the latest snapshot
func (m *Manager) Status(name string) (Status, error) {
	snap := m.Snapshot()
	if snap == nil {
		return Status{}, ErrNotDiscovered
	}
	st, ok := snap.Plugins[name]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return st, nil
}

// Standalone returns the launchable plugins ordered by name
func (m *Manager) Standalone() []*Descriptor {
	snap := m.Snapshot()
	if snap == nil {
		return nil
	}
	out := make([]*Descriptor, 0)
	for _, d := range snap.Catalog.Descriptors() {
		if d.Category.Launchable() {
			out = append(out, d)
		}
	}
	return out
}

// Launch runs an active standalone plugin. It blocks until Run returns.
func (m *Manager) Launch(ctx context.Context, name string, args []string) error {
	desc, err := m.descriptor(name)
	if err != nil {
		return err
	}
	if !desc.Category.Launchable() {
		return fmt.Errorf("%w: %s is a %s plugin", ErrNotRunnable, name, desc.Category)
	}
	if desc.Category == CategoryStandaloneGUI && !m.opts.Capabilities.Has(CapabilityGUI) {
		return fmt.Errorf("%w: %s needs %q", ErrCapabilityMissing, name, CapabilityGUI)
	}

	p, err := m.Get(name)
	if err != nil {
		return err
	}
	runner, ok := p.(Runner)
	if !ok {
		return fmt.Errorf("%w: %s does not implement Run", ErrNotRunnable, name)
	}

	ctx, span := loaderTracer.Start(ctx, "plugins.launch",
		trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	m.log.WithField("plugin", name).Info("Launching plugin")
	if err := runner.Run(ctx, args); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful discovery
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// DependencyView exposes the latest graph, analysis and plan
func (m *Manager) DependencyView() dependencies.View {
	snap := m.Snapshot()
	if snap == nil {
		return dependencies.View{}
	}
	return dependencies.View{Graph: snap.Graph, Analysis: snap.Analysis, Plan: snap.Plan}
}

// Roots returns the search directories of the latest discovery
func (m *Manager) Roots() []string {
	snap := m.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.Roots
}

func (m *Manager) descriptor(name string) (*Descriptor, error) {
	snap := m.Snapshot()
	if snap == nil {
		return nil, ErrNotDiscovered
	}
	d, ok := snap.Catalog.Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return d, nil
}

// publish builds and stores a new snapshot; m.mu must be held
func (m *Manager) publish() *Snapshot {
	cur := m.current
	m.generation++

	loadDiags := m.loader.Diagnostics()
	diags := make(Diagnostics, 0, len(cur.diags)+len(loadDiags))
	diags = append(diags, cur.diags...)
	diags = append(diags, loadDiags...)

	plugins := make(map[string]Status, cur.catalog.Len())
	for _, d := range cur.catalog.Descriptors() {
		st := Status{
			Name:        d.Name,
			State:       m.loader.State(d.Name),
			Descriptor:  d,
			Verdict:     string(cur.analysis.Status[d.Name]),
			Position:    cur.plan.Position(d.Name),
			Diagnostics: diags.ForPlugin(d.Name),
		}
		if res, ok := m.loader.LastResult(d.Name); ok && res.Err != nil {
			st.LastError = res.Err.Error()
			st.LastKind = res.Kind
		}
		plugins[d.Name] = st
	}

	snap := &Snapshot{
		ID:          uuid.NewString(),
		Generation:  m.generation,
		CreatedAt:   time.Now().UTC(),
		Roots:       append([]string(nil), cur.catalog.Roots...),
		Plugins:     plugins,
		Plan:        cur.plan,
		Diagnostics: diags,
		Catalog:     cur.catalog,
		Graph:       cur.graph,
		Analysis:    cur.analysis,
	}
	m.snapshot.Store(snap)
	return snap
}
