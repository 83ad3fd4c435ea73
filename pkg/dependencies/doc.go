// Package dependencies provides plugin dependency graph analysis and load ordering.
//
// # Overview
//
// This package models discovered plugins as a directed graph of requirements,
// decides which plugins can be loaded, and computes a deterministic activation
// order for the loadable ones.
//
// # Key Features
//
// Loadability Analysis: Missing, self and cyclic requirements make a plugin unloadable
// Propagation: Strict dependents of unloadable or skipped plugins inherit that status
// Cycle Detection: Tarjan strongly connected components, reported per member
// Load Ordering: Kahn's algorithm with ascending-name tie breaking
// Impact Analysis: Show which plugins are affected by reloading one plugin
//
// # Usage Example
//
//	g := dependencies.NewGraph()
//	g.AddNode(dependencies.Node{Name: "a", Available: true})
//	g.AddNode(dependencies.Node{Name: "b", Requires: []string{"a"}, Available: true})
//
//	analysis := g.Analyze(dependencies.Options{})
//	for _, issue := range analysis.Issues {
//		fmt.Printf("%s: %s\n", issue.Plugin, issue.Message)
//	}
//
//	plan, err := dependencies.Plan(g, analysis)
//	if errors.Is(err, dependencies.ErrPlannerInvariant) {
//		return err
//	}
//	fmt.Println(plan.Order) // [a b]
//
// # Optional Requirements
//
// Optional requirements never block loading. They order the plan only when
// their target is itself loadable, and a missing optional target is reported
// as a warning.
//
// # Related Packages
//
//   - pkg/plugins: Builds the graph from discovered manifests
package dependencies
