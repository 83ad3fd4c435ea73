package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/platinummonkey/jukebox/pkg/plugins"
)

// printer writes styled output. Colour is only emitted when w is a terminal.
type printer struct {
	w io.Writer
	r *lipgloss.Renderer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, r: lipgloss.NewRenderer(w)}
}

func (p *printer) fg(color string) lipgloss.Style {
	return p.r.NewStyle().Foreground(lipgloss.Color(color))
}

func (p *printer) header(s string) string {
	return p.r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Render(s)
}

func (p *printer) dim(s string) string {
	return p.fg("240").Render(s)
}

func (p *printer) state(s plugins.State) string {
	switch s {
	case plugins.StateActive:
		return p.fg("46").Render(string(s))
	case plugins.StateFailed:
		return p.fg("196").Render(string(s))
	case plugins.StatePlanned:
		return p.fg("214").Render(string(s))
	}
	return p.dim(string(s))
}

func (p *printer) verdict(v string) string {
	switch v {
	case "loadable":
		return p.fg("46").Render(v)
	case "unloadable":
		return p.fg("196").Render(v)
	case "skipped":
		return p.fg("214").Render(v)
	}
	return v
}

func (p *printer) severity(s string) string {
	switch s {
	case plugins.SeverityFatal, plugins.SeverityError:
		return p.fg("196").Render(s)
	case plugins.SeverityWarning:
		return p.fg("214").Render(s)
	case plugins.SeverityInfo:
		return p.fg("86").Render(s)
	}
	return p.dim(s)
}

func (p *printer) println(a ...interface{}) {
	fmt.Fprintln(p.w, a...)
}

func (p *printer) printf(format string, a ...interface{}) {
	fmt.Fprintf(p.w, format, a...)
}

// table writes left-aligned columns, measuring cells without escape codes
func (p *printer) table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			b.WriteString(cell)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		p.println(b.String())
	}

	styled := make([]string, len(header))
	for i, h := range header {
		styled[i] = p.header(h)
	}
	line(styled)
	for _, row := range rows {
		line(row)
	}
}

// diagnostics prints one diagnostic per line. Debug entries need verbose.
func (p *printer) diagnostics(ds plugins.Diagnostics, verbose bool) {
	shown := 0
	for _, d := range ds {
		if !verbose && d.Severity == plugins.SeverityDebug {
			continue
		}
		if shown == 0 {
			p.println()
			p.println(p.header("Diagnostics"))
		}
		shown++
		subject := d.Plugin
		if subject == "" {
			subject = d.Path
		}
		p.printf("  %s %s %s: %s\n", p.severity(d.Severity), d.Kind, subject, d.Message)
	}
}
