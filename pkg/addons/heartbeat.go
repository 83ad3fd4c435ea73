package addons

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/sirupsen/logrus"
)

const defaultHeartbeatInterval = 10 * time.Second

// Heartbeat is a core plugin that ticks while active
type Heartbeat struct {
	interval time.Duration
	log      *logrus.Entry
	beats    atomic.Int64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewHeartbeat builds a heartbeat from its configuration. interval_ms sets the
// tick period.
func NewHeartbeat(env plugins.Env) (plugins.Plugin, error) {
	interval := defaultHeartbeatInterval
	if ms, ok := env.Config.Int("interval_ms"); ok && ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	log := env.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Heartbeat{interval: interval, log: log}, nil
}

// Activate starts the ticker
func (h *Heartbeat) Activate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(h.stop, h.done)
	h.log.WithField("interval", h.interval.String()).Debug("Heartbeat started")
	return nil
}

func (h *Heartbeat) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := h.beats.Add(1)
			h.log.WithField("beat", n).Trace("Heartbeat")
		}
	}
}

// Deactivate stops the ticker and waits for it to exit
func (h *Heartbeat) Deactivate(ctx context.Context) error {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Beats returns the number of ticks since creation
func (h *Heartbeat) Beats() int64 {
	return h.beats.Load()
}

// Interval returns the configured tick period
func (h *Heartbeat) Interval() time.Duration {
	return h.interval
}
