package dependencies

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status"` // "loadable", "unloadable", "skipped", "missing"
	Position int    `json:"position"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "requires" or "optional"
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// BuildCytoscapeGraph converts the graph into Cytoscape.js elements. Edges point
// from a plugin to what it requires. Missing targets appear as "missing" nodes.
// Position is the index in plan order, or -1 when the plugin is not planned.
func BuildCytoscapeGraph(g *Graph, a *Analysis, p *LoadPlan) CytoscapeGraph {
	cytoGraph := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, g.Len()),
		Edges: make([]CytoscapeEdge, 0),
	}

	visited := make(map[string]bool)
	addNode := func(data CytoscapeNodeData) {
		if visited[data.ID] {
			return
		}
		visited[data.ID] = true
		cytoGraph.Nodes = append(cytoGraph.Nodes, CytoscapeNode{Data: data})
	}

	for _, name := range g.Names() {
		node := g.nodes[name]

		status := StatusLoadable
		if a != nil {
			status = a.Status[name]
		}
		position := -1
		if p != nil {
			position = p.Position(name)
		}

		addNode(CytoscapeNodeData{
			ID:       name,
			Name:     name,
			Category: node.Category,
			Status:   string(status),
			Position: position,
		})
	}

	for _, name := range g.Names() {
		for _, dep := range g.GetDependencies(name) {
			if !g.Has(dep.Plugin) {
				addNode(CytoscapeNodeData{ID: dep.Plugin, Name: dep.Plugin, Status: "missing", Position: -1})
			}

			edgeType := "requires"
			if dep.Optional {
				edgeType = "optional"
			}
			cytoGraph.Edges = append(cytoGraph.Edges, CytoscapeEdge{
				Data: CytoscapeEdgeData{
					ID:     name + "->" + dep.Plugin,
					Source: name,
					Target: dep.Plugin,
					Type:   edgeType,
				},
			})
		}
	}

	return cytoGraph
}
