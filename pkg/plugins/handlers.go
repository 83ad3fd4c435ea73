package plugins

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/jukebox/pkg/httputil"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/validation"
)

// Controller is the part of the Manager the HTTP API needs
type Controller interface {
	Snapshot() *Snapshot
	Reload(ctx context.Context, name string) (map[string]Result, error)
	ValidateConfig(name string, values validation.Values) ([]validation.Violation, error)
	Config(name string) (validation.Values, []validation.Violation, error)
}

// Handlers provides HTTP handlers for plugin inspection and control
type Handlers struct {
	ctl Controller
}

// NewHandlers creates plugin handlers
func NewHandlers(ctl Controller) *Handlers {
	return &Handlers{ctl: ctl}
}

// RegisterRoutes registers plugin routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/snapshot", h.getSnapshot).Methods("GET")
	router.HandleFunc("/plugins", h.listPlugins).Methods("GET")
	router.HandleFunc("/plugins/{name}", h.getPlugin).Methods("GET")
	router.HandleFunc("/plugins/{name}/reload", h.reloadPlugin).Methods("POST")
	router.HandleFunc("/plugins/{name}/config", h.getConfig).Methods("GET")
	router.HandleFunc("/plugins/{name}/config/validate", h.validateConfig).Methods("POST")
	router.HandleFunc("/diagnostics", h.listDiagnostics).Methods("GET")
}

// SnapshotSummary is the JSON form of a snapshot header
type SnapshotSummary struct {
	ID          string   `json:"id"`
	Generation  uint64   `json:"generation"`
	Roots       []string `json:"roots"`
	Plugins     int      `json:"plugins"`
	Diagnostics int      `json:"diagnostics"`
}

// ConfigResponse carries effective values and their violations
type ConfigResponse struct {
	Plugin     string                 `json:"plugin"`
	Valid      bool                   `json:"valid"`
	Values     validation.Values      `json:"values,omitempty"`
	Violations []validation.Violation `json:"violations"`
}

func (h *Handlers) snapshot(w http.ResponseWriter) (*Snapshot, bool) {
	snap := h.ctl.Snapshot()
	if snap == nil {
		httputil.WriteServiceUnavailable(w, ErrNotDiscovered.Error())
		return nil, false
	}
	return snap, true
}

func (h *Handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, SnapshotSummary{
		ID:          snap.ID,
		Generation:  snap.Generation,
		Roots:       snap.Roots,
		Plugins:     len(snap.Plugins),
		Diagnostics: len(snap.Diagnostics),
	})
}

func (h *Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	state := httputil.ParseQueryString(r, "state", "")
	out := make([]Status, 0, len(snap.Plugins))
	for _, name := range snap.Names() {
		st := snap.Plugins[name]
		if state != "" && string(st.State) != state {
			continue
		}
		out = append(out, st)
	}
	httputil.WriteSuccess(w, out)
}

func (h *Handlers) getPlugin(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	name := httputil.PathParam(r, "name")
	st, ok := snap.Plugins[name]
	if !ok {
		httputil.WriteNotFoundError(w, ErrPluginNotFound.Error()+": "+name)
		return
	}
	httputil.WriteSuccess(w, st)
}

func (h *Handlers) reloadPlugin(w http.ResponseWriter, r *http.Request) {
	name := httputil.PathParam(r, "name")
	log := observability.FromContext(r.Context()).WithField("plugin", name)
	log.Info("Reload requested over API")

	results, err := h.ctl.Reload(r.Context(), name)
	if err != nil {
		log.WithError(err).Warn("Reload rejected")
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	name := httputil.PathParam(r, "name")
	values, violations, err := h.ctl.Config(name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, ConfigResponse{
		Plugin:     name,
		Valid:      len(violations) == 0,
		Values:     values,
		Violations: nonNil(violations),
	})
}

func (h *Handlers) validateConfig(w http.ResponseWriter, r *http.Request) {
	name := httputil.PathParam(r, "name")

	var values validation.Values
	if !httputil.ParseJSONOrError(w, r, &values) {
		return
	}

	violations, err := h.ctl.ValidateConfig(name, values)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, ConfigResponse{
		Plugin:     name,
		Valid:      len(violations) == 0,
		Violations: nonNil(violations),
	})
}

func (h *Handlers) listDiagnostics(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	diags := snap.Diagnostics
	if kind := httputil.ParseQueryString(r, "kind", ""); kind != "" {
		diags = diags.ByKind(Kind(kind))
	}
	if plugin := httputil.ParseQueryString(r, "plugin", ""); plugin != "" {
		diags = diags.ForPlugin(plugin)
	}
	if diags == nil {
		diags = Diagnostics{}
	}
	httputil.WriteSuccess(w, diags)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPluginNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrNotDiscovered):
		httputil.WriteServiceUnavailable(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func nonNil(vs []validation.Violation) []validation.Violation {
	if vs == nil {
		return []validation.Violation{}
	}
	return vs
}
