package plugins

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/jukebox/pkg/async"
	"github.com/platinummonkey/jukebox/pkg/dependencies"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/validation"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultActivationTimeout bounds each Activate and Deactivate call
const DefaultActivationTimeout = 30 * time.Second

var loaderTracer = otel.Tracer("jukebox/plugins/loader")

// ConfigFunc returns a plugin's schema (nil when it has none) and the user's
// raw values
type ConfigFunc func(d *Descriptor) (*validation.Schema, validation.Values, error)

// LoaderOptions configures a Loader
type LoaderOptions struct {
	Registry *Registry
	Logger   *logrus.Logger
	Recorder observability.PluginRecorder
	// ActivationTimeout applies to plugins without an entry in ActivationTimeouts.
	// Zero means DefaultActivationTimeout; negative disables the deadline.
	ActivationTimeout  time.Duration
	ActivationTimeouts map[string]time.Duration
	// StrictConfig fails activation on any schema violation instead of
	// repairing the values
	StrictConfig bool
	Config       ConfigFunc
}

type record struct {
	desc     *Descriptor
	state    State
	instance Plugin
	last     Result
}

// Loader drives plugin instances through their lifecycle. Callers serialize
// LoadAll, UnloadAll, Unload and Sync; Lookup and State may be called at any
// time, including from inside plugin hooks.
type Loader struct {
	opts     LoaderOptions
	log      *logrus.Logger
	recorder observability.PluginRecorder

	mu      sync.RWMutex
	records map[string]*record
	// order holds active plugins in activation order
	order []string
	diags Diagnostics
}

// NewLoader creates a loader
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Recorder == nil {
		opts.Recorder = observability.NopRecorder{}
	}
	if opts.ActivationTimeout == 0 {
		opts.ActivationTimeout = DefaultActivationTimeout
	}

	return &Loader{
		opts:     opts,
		log:      opts.Logger,
		recorder: opts.Recorder,
		records:  make(map[string]*record),
	}
}

// Sync brings the loader's records in line with a fresh catalog. Discovered
// and unloaded plugins take their new descriptor but keep their state; use
// Reset to make unloaded plugins loadable again. Active and failed plugins
// keep their descriptor until they are unloaded.
func (l *Loader) Sync(cat *Catalog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.diags = nil

	for name, rec := range l.records {
		if _, ok := cat.Get(name); ok {
			continue
		}
		if rec.state == StateActive || rec.state == StateFailed {
			continue
		}
		delete(l.records, name)
	}

	for _, desc := range cat.Descriptors() {
		rec, ok := l.records[desc.Name]
		if !ok {
			l.records[desc.Name] = &record{desc: desc, state: StateDiscovered}
			l.recorder.SetPluginState(context.Background(), desc.Name, "", string(StateDiscovered))
			continue
		}
		switch rec.state {
		case StateUnloaded:
			rec.desc = desc
		case StateDiscovered, StatePlanned:
			rec.desc = desc
			rec.state = StateDiscovered
		}
	}
}

// Reset moves the named unloaded plugins back to Discovered
func (l *Loader) Reset(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, name := range names {
		if rec, ok := l.records[name]; ok && rec.state == StateUnloaded {
			l.setState(context.Background(), name, rec, StateDiscovered)
		}
	}
}

// LoadAll activates the plan in order. The result map has one entry for every
// plugin the plan names. Already active plugins are reported and left alone.
// One plugin failing never stops the others; a plugin whose strict
// requirement is not active fails with DependencyFailedPropagation.
func (l *Loader) LoadAll(ctx context.Context, plan *dependencies.LoadPlan, analysis *dependencies.Analysis) map[string]Result {
	results := make(map[string]Result, len(plan.Order)+len(plan.Skipped)+len(plan.Unloadable))

	for _, name := range plan.Unloadable {
		results[name] = l.notAttempted(name, analysis, KindDependencyUnloadable)
	}
	for _, name := range plan.Skipped {
		results[name] = l.notAttempted(name, analysis, KindDependencySkipped)
	}

	for _, name := range plan.Order {
		l.mu.RLock()
		rec, ok := l.records[name]
		var current record
		if ok {
			current = *rec
		}
		l.mu.RUnlock()
		if !ok {
			results[name] = Result{Name: name, Kind: KindInternalPlannerInvariantViolation, Skipped: true,
				Err: fmt.Errorf("%w: %s planned but not discovered", dependencies.ErrPlannerInvariant, name)}
			continue
		}
		if current.state != StateDiscovered {
			l.recorder.RecordActivation(ctx, name, observability.OutcomeSkipped, 0)
			results[name] = Result{Name: name, State: current.state, Kind: current.last.Kind, Err: current.last.Err, Skipped: true}
			continue
		}

		l.mu.Lock()
		l.setState(ctx, name, rec, StatePlanned)
		l.mu.Unlock()

		res := l.activate(ctx, rec)

		l.mu.Lock()
		rec.last = res
		if res.State == StateActive {
			l.order = append(l.order, name)
		}
		l.setState(ctx, name, rec, res.State)
		l.mu.Unlock()

		results[name] = res
	}

	return results
}

func (l *Loader) notAttempted(name string, analysis *dependencies.Analysis, fallback Kind) Result {
	res := Result{Name: name, State: StateDiscovered, Kind: fallback, Skipped: true}
	if rec, ok := l.lookupRecord(name); ok {
		res.State = rec.state
	}
	if analysis == nil {
		return res
	}
	for _, is := range analysis.IssuesFor(name) {
		if is.Severity == dependencies.SeverityWarning {
			continue
		}
		res.Kind = Kind(is.Kind)
		res.Err = errors.New(is.Message)
		break
	}
	return res
}

func (l *Loader) activate(ctx context.Context, rec *record) Result {
	desc := rec.desc
	start := time.Now()

	ctx, span := loaderTracer.Start(ctx, "plugins.activate",
		trace.WithAttributes(
			attribute.String("plugin.name", desc.Name),
			attribute.String("plugin.category", string(desc.Category)),
		),
	)
	defer span.End()

	log := l.log.WithFields(logrus.Fields{
		"plugin":   desc.Name,
		"category": desc.Category,
	})

	fail := func(kind Kind, err error) Result {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		outcome := observability.OutcomeFailure
		if kind == KindActivationTimeout {
			outcome = observability.OutcomeTimeout
		}
		dur := time.Since(start)
		l.recorder.RecordActivation(ctx, desc.Name, outcome, dur)
		l.addDiagnostic(Diagnostic{
			Kind:     kind,
			Severity: SeverityError,
			Plugin:   desc.Name,
			Path:     desc.ManifestPath,
			Message:  err.Error(),
			Err:      err,
		})
		return Result{Name: desc.Name, State: StateFailed, Kind: kind, Err: err, Duration: dur}
	}

	for _, req := range desc.Requires {
		if l.State(req) != StateActive {
			return fail(KindDependencyFailedPropagation, fmt.Errorf("required plugin %q is not active", req))
		}
	}

	config, err := l.resolveConfig(desc, log)
	if err != nil {
		return fail(KindSchemaViolation, err)
	}

	factory, ok := l.opts.Registry.Lookup(desc.Entry)
	if !ok {
		return fail(KindActivationFailure, fmt.Errorf("%w: entry %q", ErrNoFactory, desc.Entry))
	}

	env := Env{
		Descriptor: desc,
		Config:     config,
		Logger:     log,
		Lookup:     l.Lookup,
	}
	instance, err := l.build(factory, env, log)
	if err != nil {
		return fail(KindActivationFailure, fmt.Errorf("factory for %s: %w", desc.Name, err))
	}
	if instance == nil {
		return fail(KindActivationFailure, fmt.Errorf("factory for %s returned no plugin", desc.Name))
	}

	if err := l.runHook(ctx, desc.Name, "activate", instance.Activate, instance); err != nil {
		if errors.Is(err, ErrActivationTimeout) {
			return fail(KindActivationTimeout, err)
		}
		return fail(KindActivationFailure, err)
	}

	rec.instance = instance
	dur := time.Since(start)
	l.recorder.RecordActivation(ctx, desc.Name, observability.OutcomeSuccess, dur)
	span.SetStatus(codes.Ok, "activated")
	log.WithField("duration", dur).Info("Plugin activated")

	return Result{Name: desc.Name, State: StateActive, Duration: dur}
}

// resolveConfig returns the effective configuration for desc. Violations fail
// the plugin in strict mode; otherwise bad values fall back to their defaults.
func (l *Loader) resolveConfig(desc *Descriptor, log *logrus.Entry) (validation.Values, error) {
	if l.opts.Config == nil {
		return validation.Values{}, nil
	}

	schema, values, err := l.opts.Config(desc)
	if err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", desc.Name, err)
	}

	violations := validation.Validate(schema, values)
	if len(violations) == 0 {
		return validation.Effective(schema, values), nil
	}
	if l.opts.StrictConfig {
		return nil, &validation.ViolationError{Plugin: desc.Name, Violations: violations}
	}

	repaired, residual := validation.Repair(schema, values)
	for _, v := range violations {
		l.addDiagnostic(Diagnostic{
			Kind:     KindSchemaViolation,
			Severity: SeverityWarning,
			Plugin:   desc.Name,
			Message:  v.String(),
		})
	}
	log.WithFields(logrus.Fields{
		"violations": len(violations),
		"residual":   len(residual),
	}).Warn("Plugin configuration has violations; falling back to defaults")

	return validation.Effective(schema, repaired), nil
}

func (l *Loader) build(factory Factory, env Env, log logrus.FieldLogger) (p Plugin, err error) {
	defer observability.CapturePanic(&err, log, "plugin factory")
	return factory(env)
}

func (l *Loader) timeoutFor(name string) time.Duration {
	if d, ok := l.opts.ActivationTimeouts[name]; ok {
		return d
	}
	return l.opts.ActivationTimeout
}

// runHook calls a lifecycle hook under the plugin's deadline. Go cannot stop a
// running goroutine, so a hook that overruns is abandoned; if an abandoned
// Activate later succeeds the instance is deactivated again.
func (l *Loader) runHook(ctx context.Context, name, hook string, fn func(context.Context) error, instance Plugin) error {
	timeout := l.timeoutFor(name)

	var (
		hctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		hctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		hctx, cancel = context.WithCancel(ctx)
	}

	log := l.log.WithFields(logrus.Fields{"plugin": name, "hook": hook})
	done := make(chan error, 1)
	go func() {
		done <- invokeHook(hctx, fn, log)
	}()

	select {
	case err := <-done:
		cancel()
		return err
	case <-hctx.Done():
	}

	err := hctx.Err()
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %s %s exceeded %s", ErrActivationTimeout, name, hook, timeout)
	} else {
		err = fmt.Errorf("%s %s interrupted: %w", name, hook, err)
	}

	go func() {
		defer cancel()
		lateErr := <-done
		if lateErr != nil {
			log.WithError(lateErr).Warn("Abandoned hook finished with error")
			return
		}
		if hook != "activate" {
			log.Warn("Abandoned hook finished")
			return
		}
		log.Warn("Abandoned activation succeeded late; deactivating")
		_ = async.Run(context.Background(), DefaultActivationTimeout, name+" late deactivate", log, instance.Deactivate)
	}()

	return err
}

func invokeHook(ctx context.Context, fn func(context.Context) error, log logrus.FieldLogger) (err error) {
	defer observability.CapturePanic(&err, log, "plugin hook")
	return fn(ctx)
}

// UnloadAll deactivates every active plugin in reverse activation order.
// Failures are recorded and the plugin is still considered unloaded. Failed
// plugins move to Unloaded without a hook call.
func (l *Loader) UnloadAll(ctx context.Context) []Result {
	l.mu.RLock()
	names := make([]string, 0, len(l.records))
	for name, rec := range l.records {
		if rec.state == StateActive || rec.state == StateFailed {
			names = append(names, name)
		}
	}
	l.mu.RUnlock()

	return l.Unload(ctx, names)
}

// Unload deactivates the named plugins in reverse activation order. Names
// that are neither active nor failed are ignored.
func (l *Loader) Unload(ctx context.Context, names []string) []Result {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	l.mu.RLock()
	active := make([]string, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		if want[l.order[i]] {
			active = append(active, l.order[i])
		}
	}
	failed := make([]string, 0)
	for name := range want {
		if rec, ok := l.records[name]; ok && rec.state == StateFailed {
			failed = append(failed, name)
		}
	}
	l.mu.RUnlock()
	sort.Strings(failed)

	results := make([]Result, 0, len(active)+len(failed))
	for _, name := range active {
		results = append(results, l.deactivate(ctx, name))
	}
	for _, name := range failed {
		l.mu.Lock()
		rec := l.records[name]
		l.setState(ctx, name, rec, StateUnloaded)
		l.mu.Unlock()
		results = append(results, Result{Name: name, State: StateUnloaded, Skipped: true})
	}

	return results
}

func (l *Loader) deactivate(ctx context.Context, name string) Result {
	start := time.Now()
	ctx, span := loaderTracer.Start(ctx, "plugins.deactivate",
		trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	l.mu.RLock()
	rec := l.records[name]
	instance := rec.instance
	l.mu.RUnlock()

	res := Result{Name: name, State: StateUnloaded}
	outcome := observability.OutcomeSuccess
	if instance != nil {
		if err := l.runHook(ctx, name, "deactivate", instance.Deactivate, instance); err != nil {
			res.Kind = KindDeactivationFailure
			res.Err = err
			outcome = observability.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindDeactivationFailure))
			l.addDiagnostic(Diagnostic{
				Kind:     KindDeactivationFailure,
				Severity: SeverityWarning,
				Plugin:   name,
				Message:  err.Error(),
				Err:      err,
			})
		}
	}
	res.Duration = time.Since(start)
	l.recorder.RecordDeactivation(ctx, name, outcome)

	l.mu.Lock()
	rec.instance = nil
	rec.last = res
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.setState(ctx, name, rec, StateUnloaded)
	l.mu.Unlock()

	if res.Err == nil {
		l.log.WithField("plugin", name).Info("Plugin deactivated")
	}
	return res
}

// Lookup returns an active plugin instance
func (l *Loader) Lookup(name string) (Plugin, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[name]
	if !ok || rec.state != StateActive {
		return nil, false
	}
	return rec.instance, true
}

// State returns the lifecycle state of name, or "" when unknown
func (l *Loader) State(name string) State {
	rec, ok := l.lookupRecord(name)
	if !ok {
		return ""
	}
	return rec.state
}

// LastResult returns the most recent load or unload result for name
func (l *Loader) LastResult(name string) (Result, bool) {
	rec, ok := l.lookupRecord(name)
	if !ok {
		return Result{}, false
	}
	return rec.last, true
}

// ActivationOrder returns the active plugins in the order they were activated
func (l *Loader) ActivationOrder() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Diagnostics returns the load-time diagnostics since the last Sync
func (l *Loader) Diagnostics() Diagnostics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append(Diagnostics(nil), l.diags...)
}

func (l *Loader) lookupRecord(name string) (record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[name]
	if !ok {
		return record{}, false
	}
	return *rec, true
}

func (l *Loader) addDiagnostic(d Diagnostic) {
	l.mu.Lock()
	l.diags = append(l.diags, d)
	l.mu.Unlock()
	l.recorder.RecordDiagnostic(context.Background(), string(d.Kind), d.Severity)
}

// setState must be called with l.mu held
func (l *Loader) setState(ctx context.Context, name string, rec *record, next State) {
	if rec.state == next {
		return
	}
	if !rec.state.CanTransition(next) {
		l.log.WithFields(logrus.Fields{
			"plugin": name,
			"from":   rec.state,
			"to":     next,
		}).Error("Illegal plugin state transition")
		return
	}
	l.recorder.SetPluginState(ctx, name, string(rec.state), string(next))
	rec.state = next
}
