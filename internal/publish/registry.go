package publish

import (
	"fmt"
	"sync"

	"github.com/signalpress/signalpress/pkg/contracts"
)

// Registry holds the explicit, closed set of registered Publishers by
// channel id. There is no reflective discovery (spec.md §9): every
// channel is registered once at startup.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]contracts.Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]contracts.Publisher)}
}

func (r *Registry) Register(p contracts.Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[p.Channel()] = p
}

func (r *Registry) Get(channel string) (contracts.Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[channel]
	if !ok {
		return nil, fmt.Errorf("publish: unknown channel %q", channel)
	}
	return p, nil
}

func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.publishers))
	for c := range r.publishers {
		out = append(out, c)
	}
	return out
}

// CircuitStateReporter is implemented by Publishers that wrap a
// circuit breaker (ResilientPublisher). Plain channel Publishers don't
// satisfy it and are reported as "unknown".
type CircuitStateReporter interface {
	CircuitState() string
}

// CircuitSnapshot reports every registered channel's current circuit
// breaker state, for Health/Ready aggregate checks (spec.md §6.1).
func (r *Registry) CircuitSnapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.publishers))
	for channel, p := range r.publishers {
		if reporter, ok := p.(CircuitStateReporter); ok {
			out[channel] = reporter.CircuitState()
		} else {
			out[channel] = "unknown"
		}
	}
	return out
}
