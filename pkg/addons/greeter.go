package addons

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/platinummonkey/jukebox/pkg/plugins"
)

// Greeter is a standalone plugin that prints a greeting when launched
type Greeter struct {
	greeting string
	target   string
	shout    bool
	lookup   func(name string) (plugins.Plugin, bool)
	out      io.Writer
}

// NewGreeter builds a greeter from its configuration
func NewGreeter(env plugins.Env) (plugins.Plugin, error) {
	g := &Greeter{greeting: "Hello", target: "world", lookup: env.Lookup, out: os.Stdout}
	if s, ok := env.Config.String("greeting"); ok {
		g.greeting = s
	}
	if s, ok := env.Config.String("target"); ok {
		g.target = s
	}
	if b, ok := env.Config.Bool("shout"); ok {
		g.shout = b
	}
	return g, nil
}

// SetOutput redirects Run's output
func (g *Greeter) SetOutput(w io.Writer) {
	g.out = w
}

func (g *Greeter) Activate(context.Context) error   { return nil }
func (g *Greeter) Deactivate(context.Context) error { return nil }

// Run prints the greeting. Extra arguments replace the configured target. When
// the heartbeat plugin is active its beat count is reported too.
func (g *Greeter) Run(ctx context.Context, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := g.target
	if len(args) > 0 {
		target = strings.Join(args, " ")
	}
	line := fmt.Sprintf("%s, %s!", g.greeting, target)
	if g.shout {
		line = strings.ToUpper(line)
	}
	if _, err := fmt.Fprintln(g.out, line); err != nil {
		return err
	}

	if g.lookup == nil {
		return nil
	}
	if p, ok := g.lookup(HeartbeatEntry); ok {
		if hb, ok := p.(*Heartbeat); ok {
			_, err := fmt.Fprintf(g.out, "heartbeat: %d beats\n", hb.Beats())
			return err
		}
	}
	return nil
}
