package plugins

import "time"

// State is a plugin's lifecycle state
type State string

const (
	StateDiscovered State = "discovered"
	StatePlanned    State = "planned"
	StateActive     State = "active"
	StateFailed     State = "failed"
	StateUnloaded   State = "unloaded"
)

var transitions = map[State][]State{
	StateDiscovered: {StatePlanned},
	StatePlanned:    {StateActive, StateFailed},
	StateActive:     {StateUnloaded},
	StateFailed:     {StateUnloaded},
	StateUnloaded:   {StateDiscovered},
}

// CanTransition reports whether moving from s to next is allowed
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Result is the outcome of one plugin's load or unload attempt
type Result struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	// Kind is set when the plugin did not reach the desired state
	Kind     Kind          `json:"kind,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	// Skipped is true when the plugin was never attempted
	Skipped bool `json:"skipped,omitempty"`
}

// Error returns the failure message or ""
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Status is a plugin's externally visible condition
type Status struct {
	Name       string      `json:"name"`
	State      State       `json:"state"`
	Descriptor *Descriptor `json:"descriptor"`
	// Verdict is the loadability decided at planning time
	Verdict     string      `json:"verdict"`
	Position    int         `json:"position"`
	LastError   string      `json:"last_error,omitempty"`
	LastKind    Kind        `json:"last_kind,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics,omitempty"`
}
