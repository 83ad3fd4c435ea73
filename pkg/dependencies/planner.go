package dependencies

import (
	"container/heap"
	"errors"
	"fmt"
	"strings"
)

// ErrPlannerInvariant is returned when loadable plugins remain unordered after
// planning. Analysis marks every cycle member unloadable, so this indicates a bug.
var ErrPlannerInvariant = errors.New("planner invariant violated")

// LoadPlan is the activation order for one discovery cycle
type LoadPlan struct {
	// Order lists loadable plugins so every plugin follows its requirements.
	// Ties are broken by ascending name.
	Order      []string `json:"order"`
	Skipped    []string `json:"skipped"`
	Unloadable []string `json:"unloadable"`
}

// Position returns the index of name in the plan order, or -1
func (p *LoadPlan) Position(name string) int {
	for i, n := range p.Order {
		if n == name {
			return i
		}
	}
	return -1
}

// Plan orders the loadable plugins of g with Kahn's algorithm. An edge counts
// only when both of its ends are loadable.
func Plan(g *Graph, a *Analysis) (*LoadPlan, error) {
	loadable := a.Names(StatusLoadable)

	inDegree := make(map[string]int, len(loadable))
	dependents := make(map[string][]string, len(loadable))
	for _, name := range loadable {
		inDegree[name] = 0
	}
	for _, name := range loadable {
		for _, dep := range g.edges(name) {
			if !a.Loadable(dep) {
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := &nameHeap{}
	for _, name := range loadable {
		if inDegree[name] == 0 {
			heap.Push(ready, name)
		}
	}

	order := make([]string, 0, len(loadable))
	for ready.Len() > 0 {
		name := heap.Pop(ready).(string)
		order = append(order, name)

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(loadable) {
		residual := make([]string, 0)
		for _, name := range loadable {
			if inDegree[name] > 0 {
				residual = append(residual, name)
			}
		}
		return nil, fmt.Errorf("%w: unordered plugins %s", ErrPlannerInvariant, strings.Join(residual, ", "))
	}

	return &LoadPlan{
		Order:      order,
		Skipped:    a.Names(StatusSkipped),
		Unloadable: a.Names(StatusUnloadable),
	}, nil
}

// nameHeap is a min-heap of plugin names
type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nameHeap) Push(x any) {
	*h = append(*h, x.(string))
}

func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
