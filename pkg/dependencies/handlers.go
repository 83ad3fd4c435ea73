package dependencies

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/jukebox/pkg/httputil"
)

// View is a consistent graph, analysis and plan triple from one discovery cycle
type View struct {
	Graph    *Graph
	Analysis *Analysis
	Plan     *LoadPlan
}

// ViewSource supplies the current dependency view
type ViewSource interface {
	DependencyView() View
}

// DependencyHandlers provides HTTP handlers for dependency inspection
type DependencyHandlers struct {
	source ViewSource
}

// NewDependencyHandlers creates new dependency handlers
func NewDependencyHandlers(source ViewSource) *DependencyHandlers {
	return &DependencyHandlers{
		source: source,
	}
}

// RegisterRoutes registers dependency routes
func (h *DependencyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plan", h.getPlan).Methods("GET")
	router.HandleFunc("/graph", h.getCytoscapeGraph).Methods("GET")
	router.HandleFunc("/plugins/{name}/dependencies", h.getDependencies).Methods("GET")
	router.HandleFunc("/plugins/{name}/dependents", h.getDependents).Methods("GET")
	router.HandleFunc("/plugins/{name}/impact", h.getImpact).Methods("GET")
}

// getPlan handles GET /plan
func (h *DependencyHandlers) getPlan(w http.ResponseWriter, r *http.Request) {
	view := h.source.DependencyView()
	if view.Plan == nil {
		httputil.WriteServiceUnavailable(w, "no plan has been computed")
		return
	}
	httputil.WriteSuccess(w, view.Plan)
}

// getCytoscapeGraph handles GET /graph
func (h *DependencyHandlers) getCytoscapeGraph(w http.ResponseWriter, r *http.Request) {
	view := h.source.DependencyView()
	if view.Graph == nil {
		httputil.WriteSuccess(w, CytoscapeGraph{Nodes: []CytoscapeNode{}, Edges: []CytoscapeEdge{}})
		return
	}
	httputil.WriteSuccess(w, BuildCytoscapeGraph(view.Graph, view.Analysis, view.Plan))
}

// getDependencies handles GET /plugins/{name}/dependencies
// Query parameters:
//   - transitive: include transitive dependencies (default: false)
func (h *DependencyHandlers) getDependencies(w http.ResponseWriter, r *http.Request) {
	graph, name, ok := h.lookup(w, r)
	if !ok {
		return
	}

	transitive, err := httputil.ParseQueryBool(r, "transitive", false)
	if err != nil {
		httputil.WriteBadRequest(w, "transitive must be a boolean")
		return
	}

	deps := graph.GetDependencies(name)
	if transitive {
		deps = graph.GetTransitiveDependencies(name)
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"plugin":       name,
		"dependencies": deps,
		"count":        len(deps),
	})
}

// getDependents handles GET /plugins/{name}/dependents
func (h *DependencyHandlers) getDependents(w http.ResponseWriter, r *http.Request) {
	graph, name, ok := h.lookup(w, r)
	if !ok {
		return
	}

	dependents := graph.GetDependents(name)
	httputil.WriteSuccess(w, map[string]interface{}{
		"plugin":     name,
		"dependents": dependents,
		"count":      len(dependents),
	})
}

// getImpact handles GET /plugins/{name}/impact
func (h *DependencyHandlers) getImpact(w http.ResponseWriter, r *http.Request) {
	graph, name, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, graph.GetImpactAnalysis(name))
}

func (h *DependencyHandlers) lookup(w http.ResponseWriter, r *http.Request) (*Graph, string, bool) {
	name := httputil.PathParam(r, "name")
	graph := h.source.DependencyView().Graph
	if graph == nil || !graph.Has(name) {
		httputil.WriteNotFoundError(w, "plugin not found: "+name)
		return nil, "", false
	}
	return graph, name, true
}
