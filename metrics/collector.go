package metrics

import (
	"sync"
	"time"

	"github.com/BojanKomazec/IpSec/vpn"
)

// Collector records client notifications into the package metrics.
// It implements vpn.Observer.
type Collector struct {
	mu       sync.Mutex
	sessions map[string]sessionStart
	now      func() time.Time
}

type sessionStart struct {
	entry string
	at    time.Time
}

var _ vpn.Observer = (*Collector)(nil)

// NewCollector creates a new Collector.
func NewCollector() *Collector {
	return &Collector{
		sessions: make(map[string]sessionStart),
		now:      time.Now,
	}
}

// OnStateChange counts the state and updates the connected gauge.
func (c *Collector) OnStateChange(ev vpn.Event) {
	StateTransitionsTotal.WithLabelValues(ev.EntryName, ev.State.String()).Inc()
	if ev.Status == vpn.StatusConnected {
		Connected.WithLabelValues(ev.EntryName).Set(1)
	} else {
		Connected.WithLabelValues(ev.EntryName).Set(0)
	}
}

// OnDialResult counts the dial and records its duration.
func (c *Collector) OnDialResult(entryName, result string, elapsed time.Duration, _ error) {
	DialAttemptsTotal.WithLabelValues(entryName, result).Inc()
	DialDuration.WithLabelValues(entryName).Observe(elapsed.Seconds())
}

// OnSessionStart remembers when the session began.
func (c *Collector) OnSessionStart(s vpn.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = sessionStart{entry: s.EntryName, at: s.StartedAt}
}

// OnSessionEnd counts the ended session and records its lifetime.
// Sessions that started before the collector was registered are ignored.
func (c *Collector) OnSessionEnd(id, result string, _ error) {
	c.mu.Lock()
	start, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if !ok {
		return
	}

	SessionsEndedTotal.WithLabelValues(start.entry, result).Inc()
	SessionDuration.WithLabelValues(start.entry).Observe(c.now().Sub(start.at).Seconds())
}

// SetHealth sets the health gauge. Sets value to 1 for the given state, 0 for others.
func (c *Collector) SetHealth(entryName string, state vpn.HealthState) {
	states := []vpn.HealthState{vpn.HealthHealthy, vpn.HealthDegraded, vpn.HealthUnhealthy, vpn.HealthUnknown}
	for _, s := range states {
		if s == state {
			HealthState.WithLabelValues(entryName, s.String()).Set(1)
		} else {
			HealthState.WithLabelValues(entryName, s.String()).Set(0)
		}
	}
}
