package plugins

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

type pluginSpec struct {
	name     string
	category Category
	host     string
	requires []string
	optional []string
}

func (s pluginSpec) manifest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", s.name)
	category := s.category
	if category == "" {
		category = CategoryCore
	}
	fmt.Fprintf(&b, "category: %s\n", category)
	if s.host != "" {
		fmt.Fprintf(&b, "host: %s\n", s.host)
	}
	if len(s.requires) > 0 {
		fmt.Fprintf(&b, "requires: [%s]\n", strings.Join(s.requires, ", "))
	}
	if len(s.optional) > 0 {
		fmt.Fprintf(&b, "optional_requires: [%s]\n", strings.Join(s.optional, ", "))
	}
	b.WriteString("version: 1.0.0\nlicense: MIT\n")
	return b.String()
}

// writePlugin writes root/<name>/plugin.yaml and returns the manifest path
func writePlugin(t *testing.T, root string, spec pluginSpec) string {
	t.Helper()
	path := filepath.Join(root, spec.name, ManifestFileName)
	writeFile(t, path, spec.manifest())
	return path
}

func core(name string, requires ...string) pluginSpec {
	return pluginSpec{name: name, category: CategoryCore, requires: requires}
}

// eventLog records lifecycle calls in order
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, fmt.Sprintf(format, args...))
}

func (e *eventLog) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *eventLog) has(event string) bool {
	for _, ev := range e.list() {
		if ev == event {
			return true
		}
	}
	return false
}

type behavior struct {
	activateErr   error
	activatePanic bool
	activateDelay time.Duration
	deactivateErr error
	factoryPanic  bool
}

type fakePlugin struct {
	name   string
	env    Env
	log    *eventLog
	behave behavior
}

func (p *fakePlugin) Activate(ctx context.Context) error {
	if p.behave.activatePanic {
		panic("boom")
	}
	if p.behave.activateDelay > 0 {
		// Deliberately ignores ctx to model an uncooperative hook
		time.Sleep(p.behave.activateDelay)
	}
	if p.behave.activateErr != nil {
		p.log.add("%s:activate-failed", p.name)
		return p.behave.activateErr
	}
	p.log.add("%s:activate", p.name)
	return nil
}

func (p *fakePlugin) Deactivate(ctx context.Context) error {
	p.log.add("%s:deactivate", p.name)
	return p.behave.deactivateErr
}

type fakeRunner struct {
	fakePlugin
}

func (r *fakeRunner) Run(ctx context.Context, args []string) error {
	r.log.add("%s:run:%s", r.name, strings.Join(args, ","))
	return nil
}

// fakeRegistry registers a factory per name. Behaviors are read at factory
// time so tests may change them between loads.
type fakeRegistry struct {
	*Registry
	log       *eventLog
	mu        sync.Mutex
	behaviors map[string]behavior
	envs      map[string]Env
}

func newFakeRegistry(names ...string) *fakeRegistry {
	fr := &fakeRegistry{
		Registry:  NewRegistry(),
		log:       &eventLog{},
		behaviors: make(map[string]behavior),
		envs:      make(map[string]Env),
	}
	for _, n := range names {
		fr.add(n, false)
	}
	return fr
}

func (fr *fakeRegistry) add(name string, runner bool) {
	fr.MustRegister(name, func(env Env) (Plugin, error) {
		fr.mu.Lock()
		b := fr.behaviors[name]
		fr.envs[name] = env
		fr.mu.Unlock()

		if b.factoryPanic {
			panic("factory exploded")
		}
		fr.log.add("%s:build", name)
		p := fakePlugin{name: name, env: env, log: fr.log, behave: b}
		if runner {
			return &fakeRunner{fakePlugin: p}, nil
		}
		return &p, nil
	})
}

func (fr *fakeRegistry) set(name string, b behavior) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.behaviors[name] = b
}

func (fr *fakeRegistry) env(name string) Env {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.envs[name]
}

func newTestManager(t *testing.T, fr *fakeRegistry, mutate func(*Options), roots ...string) *Manager {
	t.Helper()
	opts := Options{
		Sources:  []PathSource{{Name: SourceSettings, Entries: roots}},
		Registry: fr.Registry,
		Logger:   quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewManager(opts)
}
