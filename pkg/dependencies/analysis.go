package dependencies

import (
	"fmt"
	"sort"
	"strings"
)

// Status is the loadability verdict for one plugin
type Status string

const (
	StatusLoadable   Status = "loadable"
	StatusUnloadable Status = "unloadable"
	StatusSkipped    Status = "skipped"
)

// IssueKind classifies a problem found while analyzing the graph
type IssueKind string

const (
	IssueMissingDependency    IssueKind = "MissingDependency"
	IssueSelfDependency       IssueKind = "SelfDependency"
	IssueCycleDetected        IssueKind = "CycleDetected"
	IssueDependencyUnloadable IssueKind = "DependencyUnloadable"
	IssueHostUnavailable      IssueKind = "HostUnavailable"
	IssueDependencySkipped    IssueKind = "DependencySkipped"
)

// Severity levels for issues
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is one analysis finding attached to a plugin
type Issue struct {
	Plugin   string    `json:"plugin"`
	Kind     IssueKind `json:"kind"`
	Severity string    `json:"severity"`
	Related  []string  `json:"related,omitempty"`
	Message  string    `json:"message"`
}

// Options tunes graph analysis
type Options struct {
	// HostReason describes the unmet capability for unavailable nodes
	HostReason func(n *Node) string
}

// Analysis is the outcome of analyzing a graph
type Analysis struct {
	Status map[string]Status `json:"status"`
	Issues []Issue           `json:"issues"`
	Cycles [][]string        `json:"cycles,omitempty"`
}

// Loadable reports whether name may be activated
func (a *Analysis) Loadable(name string) bool {
	return a.Status[name] == StatusLoadable
}

// Names returns the plugins with the given status in ascending order
func (a *Analysis) Names(status Status) []string {
	out := make([]string, 0)
	for name, s := range a.Status {
		if s == status {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IssuesFor returns the issues attached to one plugin
func (a *Analysis) IssuesFor(name string) []Issue {
	out := make([]Issue, 0)
	for _, is := range a.Issues {
		if is.Plugin == name {
			out = append(out, is)
		}
	}
	return out
}

// Analyze computes loadability for every node. It never fails: each problem
// becomes an Issue and only the affected plugins lose loadability.
func (g *Graph) Analyze(opts Options) *Analysis {
	a := &Analysis{
		Status: make(map[string]Status, len(g.nodes)),
		Issues: make([]Issue, 0),
	}
	names := g.Names()

	for _, name := range names {
		a.Status[name] = StatusLoadable
	}

	// Local defects
	for _, name := range names {
		node := g.nodes[name]

		if contains(node.Requires, name) {
			a.Status[name] = StatusUnloadable
			a.add(name, IssueSelfDependency, SeverityError, nil, "plugin requires itself")
		}
		if contains(node.OptionalRequires, name) {
			a.add(name, IssueSelfDependency, SeverityWarning, nil, "plugin optionally requires itself; ignored")
		}

		for _, r := range node.Requires {
			if r != name && !g.Has(r) {
				a.Status[name] = StatusUnloadable
				a.add(name, IssueMissingDependency, SeverityError, []string{r},
					fmt.Sprintf("required plugin %q was not found", r))
			}
		}
		for _, r := range node.OptionalRequires {
			if r != name && !g.Has(r) {
				a.add(name, IssueMissingDependency, SeverityWarning, []string{r},
					fmt.Sprintf("optional plugin %q was not found", r))
			}
		}
	}

	for _, scc := range g.stronglyConnected() {
		if len(scc) < 2 {
			continue
		}
		a.Cycles = append(a.Cycles, scc)
		for _, member := range scc {
			a.Status[member] = StatusUnloadable
			a.add(member, IssueCycleDetected, SeverityError, scc,
				fmt.Sprintf("dependency cycle: %s", strings.Join(scc, " -> ")))
		}
	}

	g.propagate(a, names, StatusUnloadable, IssueDependencyUnloadable, SeverityError, "required plugin %q cannot be loaded")

	for _, name := range names {
		node := g.nodes[name]
		if node.Available || a.Status[name] == StatusUnloadable {
			continue
		}
		a.Status[name] = StatusSkipped
		reason := "required capability is not available"
		if opts.HostReason != nil {
			reason = opts.HostReason(node)
		}
		a.add(name, IssueHostUnavailable, SeverityInfo, nil, reason)
	}

	g.propagate(a, names, StatusSkipped, IssueDependencySkipped, SeverityInfo, "required plugin %q is skipped")

	sort.SliceStable(a.Issues, func(i, j int) bool {
		return a.Issues[i].Plugin < a.Issues[j].Plugin
	})
	return a
}

// propagate marks every loadable plugin with a strict requirement in status
// as that status too, until no more plugins change.
func (g *Graph) propagate(a *Analysis, names []string, status Status, kind IssueKind, severity, format string) {
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			if a.Status[name] != StatusLoadable {
				continue
			}
			for _, r := range g.nodes[name].Requires {
				if r == name || a.Status[r] != status {
					continue
				}
				a.Status[name] = status
				a.add(name, kind, severity, []string{r}, fmt.Sprintf(format, r))
				changed = true
				break
			}
		}
	}
}

func (a *Analysis) add(plugin string, kind IssueKind, severity string, related []string, msg string) {
	a.Issues = append(a.Issues, Issue{
		Plugin:   plugin,
		Kind:     kind,
		Severity: severity,
		Related:  related,
		Message:  msg,
	})
}

// stronglyConnected returns the strongly connected components of the graph
// using Tarjan's algorithm. Members of each component and the component list
// are sorted by name.
func (g *Graph) stronglyConnected() [][]string {
	index := 0
	indices := make(map[string]int, len(g.nodes))
	lowlink := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	stack := make([]string, 0)
	components := make([][]string, 0)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges(v) {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && indices[w] < lowlink[v] {
				lowlink[v] = indices[w]
			}
		}

		if lowlink[v] == indices[v] {
			component := make([]string, 0)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, name := range g.Names() {
		if _, seen := indices[name]; !seen {
			strongConnect(name)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}
