package dependencies

import (
	"sort"
)

// Node is one plugin in the dependency graph
type Node struct {
	Name             string   `json:"name"`
	Category         string   `json:"category,omitempty"`
	Requires         []string `json:"requires,omitempty"`
	OptionalRequires []string `json:"optional_requires,omitempty"`
	// Available reports whether the execution context satisfies the
	// capability the node's category needs
	Available bool `json:"available"`
}

// Dependency is a directed edge from a plugin to a plugin it requires
type Dependency struct {
	Plugin   string `json:"plugin"`
	Optional bool   `json:"optional,omitempty"`
	Type     string `json:"type"` // "direct" or "transitive"
}

// Graph holds plugins and their requirement edges. Edges may point at names
// that are not nodes; Analyze reports those as missing.
type Graph struct {
	nodes map[string]*Node
}

// NewGraph creates an empty dependency graph
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

// AddNode adds or replaces a node. Requirement lists are deduplicated.
func (g *Graph) AddNode(n Node) {
	n.Requires = uniqueSorted(n.Requires)
	n.OptionalRequires = uniqueSorted(n.OptionalRequires)

	// A strict requirement subsumes an optional one on the same target
	strict := make(map[string]bool, len(n.Requires))
	for _, r := range n.Requires {
		strict[r] = true
	}
	optional := n.OptionalRequires[:0]
	for _, r := range n.OptionalRequires {
		if !strict[r] {
			optional = append(optional, r)
		}
	}
	n.OptionalRequires = optional

	g.nodes[n.Name] = &n
}

// GetNode retrieves a node from the graph
func (g *Graph) GetNode(name string) *Node {
	return g.nodes[name]
}

// Has reports whether name is a node of the graph
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Names returns all node names in ascending order
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// GetDependencies returns the direct requirements of a plugin, strict first
func (g *Graph) GetDependencies(name string) []Dependency {
	node := g.GetNode(name)
	if node == nil {
		return nil
	}

	deps := make([]Dependency, 0, len(node.Requires)+len(node.OptionalRequires))
	for _, r := range node.Requires {
		deps = append(deps, Dependency{Plugin: r, Type: "direct"})
	}
	for _, r := range node.OptionalRequires {
		deps = append(deps, Dependency{Plugin: r, Optional: true, Type: "direct"})
	}
	return deps
}

// GetTransitiveDependencies returns every plugin reachable through requirement
// edges, in breadth-first order
func (g *Graph) GetTransitiveDependencies(name string) []Dependency {
	visited := map[string]bool{name: true}
	result := make([]Dependency, 0)

	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.GetDependencies(current) {
			if visited[dep.Plugin] {
				continue
			}
			visited[dep.Plugin] = true

			if current != name {
				dep.Type = "transitive"
			}
			result = append(result, dep)
			queue = append(queue, dep.Plugin)
		}
	}

	return result
}

// GetDependents returns the plugins that directly require name
func (g *Graph) GetDependents(name string) []Dependency {
	dependents := make([]Dependency, 0)

	for _, nodeName := range g.Names() {
		node := g.nodes[nodeName]
		if nodeName == name {
			continue
		}
		if contains(node.Requires, name) {
			dependents = append(dependents, Dependency{Plugin: nodeName, Type: "direct"})
		} else if contains(node.OptionalRequires, name) {
			dependents = append(dependents, Dependency{Plugin: nodeName, Optional: true, Type: "direct"})
		}
	}

	return dependents
}

// GetTransitiveDependents returns every plugin that reaches name through
// requirement edges, in breadth-first order
func (g *Graph) GetTransitiveDependents(name string) []Dependency {
	visited := map[string]bool{name: true}
	result := make([]Dependency, 0)

	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.GetDependents(current) {
			if visited[dep.Plugin] {
				continue
			}
			visited[dep.Plugin] = true

			if current != name {
				dep.Type = "transitive"
			}
			result = append(result, dep)
			queue = append(queue, dep.Plugin)
		}
	}

	return result
}

// GetImpactAnalysis returns what would be affected by reloading or removing a plugin
func (g *Graph) GetImpactAnalysis(name string) *ImpactAnalysis {
	direct := g.GetDependents(name)
	all := g.GetTransitiveDependents(name)

	return &ImpactAnalysis{
		Plugin:               name,
		DirectDependents:     direct,
		TransitiveDependents: all[len(direct):],
		TotalImpact:          len(all),
	}
}

// ImpactAnalysis represents the impact of changes to one plugin
type ImpactAnalysis struct {
	Plugin               string       `json:"plugin"`
	DirectDependents     []Dependency `json:"direct_dependents"`
	TransitiveDependents []Dependency `json:"transitive_dependents"`
	TotalImpact          int          `json:"total_impact"`
}

// edges returns the ordering edges of a node: every strict requirement plus
// optional requirements whose target exists. Self references are dropped.
func (g *Graph) edges(name string) []string {
	node := g.nodes[name]
	out := make([]string, 0, len(node.Requires)+len(node.OptionalRequires))
	for _, r := range node.Requires {
		if r != name && g.Has(r) {
			out = append(out, r)
		}
	}
	for _, r := range node.OptionalRequires {
		if r != name && g.Has(r) {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
