package emulatorx

import (
	"sync"

	"github.com/samber/lo"
)

// Registry keeps the emulators known to the console, at most one per type, and
// pushes changes to subscribers of a type.
type Registry struct {
	mu        sync.Mutex
	emulators map[string]*ConnectionConfig
	subs      map[string]map[uint64]func(*ConnectionConfig)
	nextSubID uint64
	// notifyMu serializes notifications so subscribers observe changes in order.
	notifyMu sync.Mutex
}

func NewRegistry(emulators ...Emulator) *Registry {
	r := &Registry{
		emulators: map[string]*ConnectionConfig{},
		subs:      map[string]map[uint64]func(*ConnectionConfig){},
	}
	for _, e := range emulators {
		r.emulators[e.Type] = e.ConnectionConfig()
	}
	return r
}

// ByType returns the configuration of the emulator registered for the type, or nil.
func (r *Registry) ByType(emulatorType string) *ConnectionConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emulators[emulatorType].Clone()
}

// Types returns the registered emulator types.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.emulators)
}

// Register adds or replaces the emulator for its type.
func (r *Registry) Register(e Emulator) {
	r.update(func(m map[string]*ConnectionConfig) {
		m[e.Type] = e.ConnectionConfig()
	})
}

// Unregister removes the emulator of the given type.
func (r *Registry) Unregister(emulatorType string) {
	r.update(func(m map[string]*ConnectionConfig) {
		delete(m, emulatorType)
	})
}

// Set replaces every registered emulator at once. When several emulators share
// a type the last one wins.
func (r *Registry) Set(emulators []Emulator) {
	r.update(func(m map[string]*ConnectionConfig) {
		for k := range m {
			delete(m, k)
		}
		for _, e := range emulators {
			m[e.Type] = e.ConnectionConfig()
		}
	})
}

// Subscribe registers fn to be called with the configuration of the given type
// each time it changes value, and once right away with the current value.
// fn receives nil when the type becomes unregistered. fn must not mutate the
// registry synchronously.
func (r *Registry) Subscribe(emulatorType string, fn func(*ConnectionConfig)) (unsubscribe func()) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	if r.subs[emulatorType] == nil {
		r.subs[emulatorType] = map[uint64]func(*ConnectionConfig){}
	}
	r.subs[emulatorType][id] = fn
	current := r.emulators[emulatorType].Clone()
	r.mu.Unlock()

	fn(current)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[emulatorType], id)
	}
}

type notification struct {
	fn  func(*ConnectionConfig)
	cfg *ConnectionConfig
}

func (r *Registry) update(mutate func(map[string]*ConnectionConfig)) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	before := lo.MapValues(r.emulators, func(c *ConnectionConfig, _ string) *ConnectionConfig { return c })
	mutate(r.emulators)

	var pending []notification
	for emulatorType, subs := range r.subs {
		after := r.emulators[emulatorType]
		if before[emulatorType].Equal(after) {
			continue
		}
		for _, fn := range subs {
			pending = append(pending, notification{fn: fn, cfg: after.Clone()})
		}
	}
	r.mu.Unlock()

	for _, n := range pending {
		n.fn(n.cfg)
	}
}
