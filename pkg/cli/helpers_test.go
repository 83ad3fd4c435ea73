package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/platinummonkey/jukebox/pkg/addons"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/stretchr/testify/require"
)

// builtinDir is the repository's addons directory
func builtinDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "addons"))
	require.NoError(t, err)
	return dir
}

// isolateEnv points jukebox at a temp home with only the built-in addons
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("JUKEBOX_HOME", home)
	t.Setenv("JUKEBOX_SETTINGS", "")
	t.Setenv("JUKEBOX_CONFIG_DIR", "")
	t.Setenv("JUKEBOX_BUILTIN_PATH", builtinDir(t))
	t.Setenv("JUKEBOX_PLUGIN_PATH", "")
	t.Setenv("JUKEBOX_LOG_LEVEL", "error")
	t.Setenv("JUKEBOX_LOG_FORMAT", "")
	t.Setenv("JUKEBOX_STRICT_CONFIG", "")
	t.Setenv("JUKEBOX_ACTIVATION_TIMEOUT", "")
	t.Setenv("JUKEBOX_CAPABILITIES", "")
	os.Unsetenv("JUKEBOX_CAPABILITIES")
	return home
}

// writeManifest creates root/<name>/plugin.yaml
func writeManifest(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugins.ManifestFileName), []byte(body), 0644))
}

type brokenPlugin struct{}

func (brokenPlugin) Activate(context.Context) error   { return errors.New("refusing to start") }
func (brokenPlugin) Deactivate(context.Context) error { return nil }

// registerWith returns a Register func adding the addons, a broken factory and
// a greeter whose output goes to out
func registerWith(out io.Writer) func(*plugins.Registry) error {
	return func(r *plugins.Registry) error {
		if err := r.Register(addons.HeartbeatEntry, addons.NewHeartbeat); err != nil {
			return err
		}
		if err := r.Register(addons.GreeterEntry, func(env plugins.Env) (plugins.Plugin, error) {
			p, err := addons.NewGreeter(env)
			if err != nil {
				return nil, err
			}
			p.(*addons.Greeter).SetOutput(out)
			return p, nil
		}); err != nil {
			return err
		}
		return r.Register("broken", func(plugins.Env) (plugins.Plugin, error) { return brokenPlugin{}, nil })
	}
}

// run executes the root command and returns its standard output
func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	opts.Err = io.Discard
	if opts.Register == nil {
		opts.Register = registerWith(&out)
	}

	root := NewRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
