package dependencies

import (
	"reflect"
	"testing"
)

func node(name string, requires ...string) Node {
	return Node{Name: name, Requires: requires, Available: true}
}

func TestGraph_AddNode(t *testing.T) {
	graph := NewGraph()

	graph.AddNode(Node{
		Name:             "user",
		Requires:         []string{"common", "common", "base"},
		OptionalRequires: []string{"base", "extra"},
		Available:        true,
	})

	n := graph.GetNode("user")
	if n == nil {
		t.Fatal("Expected node to be added")
	}

	if !reflect.DeepEqual(n.Requires, []string{"base", "common"}) {
		t.Errorf("Expected deduplicated requires, got %v", n.Requires)
	}

	// base is strict, so it must not also be optional
	if !reflect.DeepEqual(n.OptionalRequires, []string{"extra"}) {
		t.Errorf("Expected optional requires [extra], got %v", n.OptionalRequires)
	}
}

func TestGraph_GetTransitiveDependencies(t *testing.T) {
	graph := NewGraph()

	// user -> common -> base
	graph.AddNode(node("base"))
	graph.AddNode(node("common", "base"))
	graph.AddNode(node("user", "common"))

	deps := graph.GetTransitiveDependencies("user")
	if len(deps) != 2 {
		t.Fatalf("Expected 2 transitive dependencies, got %d", len(deps))
	}
	if deps[0].Plugin != "common" || deps[0].Type != "direct" {
		t.Errorf("Expected direct common first, got %+v", deps[0])
	}
	if deps[1].Plugin != "base" || deps[1].Type != "transitive" {
		t.Errorf("Expected transitive base second, got %+v", deps[1])
	}
}

func TestGraph_GetDependents(t *testing.T) {
	graph := NewGraph()

	graph.AddNode(node("common"))
	graph.AddNode(node("user", "common"))
	graph.AddNode(node("order", "common"))
	graph.AddNode(Node{Name: "audit", OptionalRequires: []string{"common"}, Available: true})

	dependents := graph.GetDependents("common")
	if len(dependents) != 3 {
		t.Fatalf("Expected 3 dependents, got %d", len(dependents))
	}

	names := []string{dependents[0].Plugin, dependents[1].Plugin, dependents[2].Plugin}
	if !reflect.DeepEqual(names, []string{"audit", "order", "user"}) {
		t.Errorf("Expected sorted dependents, got %v", names)
	}
	if !dependents[0].Optional {
		t.Error("Expected audit to be an optional dependent")
	}
}

func TestGraph_GetImpactAnalysis(t *testing.T) {
	graph := NewGraph()

	// base <- common <- user, base <- order
	graph.AddNode(node("base"))
	graph.AddNode(node("common", "base"))
	graph.AddNode(node("user", "common"))
	graph.AddNode(node("order", "base"))

	impact := graph.GetImpactAnalysis("base")

	if impact.Plugin != "base" {
		t.Errorf("Expected plugin 'base', got %s", impact.Plugin)
	}
	if len(impact.DirectDependents) != 2 {
		t.Errorf("Expected 2 direct dependents, got %d", len(impact.DirectDependents))
	}
	if len(impact.TransitiveDependents) != 1 || impact.TransitiveDependents[0].Plugin != "user" {
		t.Errorf("Expected user as the only transitive dependent, got %+v", impact.TransitiveDependents)
	}
	if impact.TotalImpact != 3 {
		t.Errorf("Expected total impact 3, got %d", impact.TotalImpact)
	}
}

func TestAnalyze_MissingDependency(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(node("b", "zzz"))
	graph.AddNode(node("c", "b"))
	graph.AddNode(node("d"))

	a := graph.Analyze(Options{})

	if a.Status["b"] != StatusUnloadable {
		t.Errorf("Expected b unloadable, got %s", a.Status["b"])
	}
	if a.Status["c"] != StatusUnloadable {
		t.Errorf("Expected c unloadable, got %s", a.Status["c"])
	}
	if a.Status["d"] != StatusLoadable {
		t.Errorf("Expected d loadable, got %s", a.Status["d"])
	}

	issues := a.IssuesFor("b")
	if len(issues) != 1 || issues[0].Kind != IssueMissingDependency || issues[0].Related[0] != "zzz" {
		t.Errorf("Expected MissingDependency on zzz for b, got %+v", issues)
	}
	issues = a.IssuesFor("c")
	if len(issues) != 1 || issues[0].Kind != IssueDependencyUnloadable {
		t.Errorf("Expected DependencyUnloadable for c, got %+v", issues)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(node("x", "y"))
	graph.AddNode(node("y", "x"))
	graph.AddNode(node("z"))

	a := graph.Analyze(Options{})

	if len(a.Cycles) != 1 || !reflect.DeepEqual(a.Cycles[0], []string{"x", "y"}) {
		t.Fatalf("Expected one cycle [x y], got %v", a.Cycles)
	}
	for _, name := range []string{"x", "y"} {
		issues := a.IssuesFor(name)
		if len(issues) != 1 || issues[0].Kind != IssueCycleDetected {
			t.Errorf("Expected CycleDetected for %s, got %+v", name, issues)
		}
	}
	if !a.Loadable("z") {
		t.Error("Expected z to stay loadable")
	}
}

func TestAnalyze_OptionalEdgesCloseCycles(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(node("x", "y"))
	graph.AddNode(Node{Name: "y", OptionalRequires: []string{"x"}, Available: true})

	a := graph.Analyze(Options{})
	if a.Loadable("x") || a.Loadable("y") {
		t.Errorf("Expected both cycle members unloadable, got %v", a.Status)
	}
}

func TestAnalyze_SelfDependency(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(node("self", "self"))
	graph.AddNode(Node{Name: "soft", OptionalRequires: []string{"soft"}, Available: true})

	a := graph.Analyze(Options{})

	if a.Loadable("self") {
		t.Error("Expected self to be unloadable")
	}
	if !a.Loadable("soft") {
		t.Error("Expected optional self reference to be ignored")
	}
	if len(a.Cycles) != 0 {
		t.Errorf("Self references are not cycles, got %v", a.Cycles)
	}
}

func TestAnalyze_SkippedPropagation(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(Node{Name: "hostonly", Category: "host", Available: false})
	graph.AddNode(node("strict", "hostonly"))
	graph.AddNode(Node{Name: "soft", OptionalRequires: []string{"hostonly"}, Available: true})
	graph.AddNode(node("chained", "strict"))

	a := graph.Analyze(Options{
		HostReason: func(n *Node) string { return "host unavailable for " + n.Name },
	})

	expected := map[string]Status{
		"hostonly": StatusSkipped,
		"strict":   StatusSkipped,
		"chained":  StatusSkipped,
		"soft":     StatusLoadable,
	}
	if !reflect.DeepEqual(a.Status, expected) {
		t.Errorf("Expected %v, got %v", expected, a.Status)
	}

	issues := a.IssuesFor("hostonly")
	if len(issues) != 1 || issues[0].Kind != IssueHostUnavailable || issues[0].Message != "host unavailable for hostonly" {
		t.Errorf("Expected HostUnavailable for hostonly, got %+v", issues)
	}
	issues = a.IssuesFor("strict")
	if len(issues) != 1 || issues[0].Kind != IssueDependencySkipped {
		t.Errorf("Expected DependencySkipped for strict, got %+v", issues)
	}
}

func TestAnalyze_MissingOptionalIsWarning(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(Node{Name: "a", OptionalRequires: []string{"ghost"}, Available: true})

	a := graph.Analyze(Options{})

	if !a.Loadable("a") {
		t.Error("Expected a to be loadable")
	}
	issues := a.IssuesFor("a")
	if len(issues) != 1 || issues[0].Severity != SeverityWarning || issues[0].Kind != IssueMissingDependency {
		t.Errorf("Expected a MissingDependency warning, got %+v", issues)
	}
}

func TestAnalyze_UnloadableDominatesSkipped(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(Node{Name: "h", Requires: []string{"missing"}, Available: false})

	a := graph.Analyze(Options{})
	if a.Status["h"] != StatusUnloadable {
		t.Errorf("Expected unloadable, got %s", a.Status["h"])
	}
}
