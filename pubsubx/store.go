package pubsubx

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/tracex"
)

// Store holds the last known topic collection of the configured emulator.
//
// Refreshes are tagged with the config epoch they were issued for and a
// sequence number. A response is applied only when its epoch is still current
// and no newer refresh was applied, so a late answer can never overwrite newer
// data nor data of another emulator.
type Store struct {
	l       *logrusx.Logger
	client  ResourceClient
	metrics *Metrics

	mu      sync.RWMutex
	config  *emulatorx.ConnectionConfig
	topics  TopicCollection
	loaded  bool
	version uint64
	epoch   uint64
	issued  uint64
	applied uint64

	// notifyMu serializes observer calls so they see snapshots in order.
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[uint64]func(Snapshot)
	nextObsID uint64
}

func NewStore(l *logrusx.Logger, client ResourceClient, metrics *Metrics) *Store {
	return &Store{
		l:         l,
		client:    client,
		metrics:   metrics,
		observers: make(map[uint64]func(Snapshot)),
	}
}

// Config returns a copy of the current connection config, nil when unset.
func (s *Store) Config() *emulatorx.ConnectionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Config:  s.config.Clone(),
		Topics:  s.topics.Clone(),
		Loaded:  s.loaded,
		Version: s.version,
	}
}

// SetConfig switches the store to cfg. On an actual change the current
// collection is discarded and every in-flight refresh becomes stale.
// It returns false when cfg is equal to the current config.
func (s *Store) SetConfig(cfg *emulatorx.ConnectionConfig) bool {
	s.mu.Lock()
	if s.config.Equal(cfg) {
		s.mu.Unlock()
		return false
	}
	s.config = cfg.Clone()
	s.topics = nil
	s.loaded = false
	s.epoch++
	s.version++
	s.mu.Unlock()

	s.metrics.setTopics(0)
	s.l.Debugf("pubsub store switched to %s", cfg)
	s.notify()
	return true
}

// Refresh fetches the topics for cfg and replaces the collection with them.
//
// It returns true when the response was applied. A response that became stale
// while in flight is dropped, including failures, and reported as (false, nil).
// On failure the previous collection is kept.
func (s *Store) Refresh(ctx context.Context, cfg *emulatorx.ConnectionConfig) (bool, error) {
	if cfg == nil {
		return false, NewConfigUnsetFailure(OperationListTopics)
	}

	s.mu.Lock()
	if !s.config.Equal(cfg) {
		s.mu.Unlock()
		s.l.Debugf("skipping refresh for %s, the store now targets another emulator", cfg)
		s.metrics.observeRefresh(RefreshOutcomeDiscarded)
		return false, nil
	}
	s.issued++
	epoch, seq := s.epoch, s.issued
	s.mu.Unlock()

	topics, err := s.client.ListTopics(ctx, cfg)

	s.mu.Lock()
	if epoch != s.epoch || seq <= s.applied {
		s.mu.Unlock()
		s.l.WithField("sequence", seq).Debugf("discarding stale topic list for %s", cfg)
		s.metrics.observeRefresh(RefreshOutcomeDiscarded)
		return false, nil
	}
	if err != nil {
		s.mu.Unlock()
		s.metrics.observeRefresh(RefreshOutcomeFailed)
		return false, err
	}
	s.topics = topics.unique()
	s.loaded = true
	s.applied = seq
	s.version++
	n := len(s.topics)
	s.mu.Unlock()

	s.metrics.observeRefresh(RefreshOutcomeApplied)
	s.metrics.setTopics(n)
	s.notify()
	return true, nil
}

// RemoveByName drops the topic with the given full name. Unknown names are a no-op.
func (s *Store) RemoveByName(fullName string) bool {
	return s.remove(nil, fullName)
}

// removeByNameFor removes only if the store still targets cfg.
func (s *Store) removeByNameFor(cfg *emulatorx.ConnectionConfig, fullName string) bool {
	if cfg == nil {
		return false
	}
	return s.remove(cfg, fullName)
}

func (s *Store) remove(cfg *emulatorx.ConnectionConfig, fullName string) bool {
	s.mu.Lock()
	if cfg != nil && !s.config.Equal(cfg) {
		s.mu.Unlock()
		return false
	}
	_, idx, ok := lo.FindIndexOf(s.topics, func(t TopicResource) bool {
		return t.FullName == fullName
	})
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.topics = slices.Delete(s.topics.Clone(), idx, idx+1)
	s.version++
	n := len(s.topics)
	s.mu.Unlock()

	s.metrics.setTopics(n)
	s.notify()
	return true
}

// Subscribe registers fn to be called with every new snapshot. fn is called
// once with the current snapshot before Subscribe returns. Calls are
// serialized; fn must not call back into the store's write methods.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	s.deliver(fn, s.Snapshot())

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.obsMu.Lock()
	observers := lo.Values(s.observers)
	s.obsMu.Unlock()
	if len(observers) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, fn := range observers {
		s.deliver(fn, snap)
	}
}

// deliver keeps a panicking observer from taking the store down with it.
func (s *Store) deliver(fn func(Snapshot), snap Snapshot) {
	defer tracex.RecoverWithStackTracef(s.l, "panic while notifying snapshot %d", snap.Version)
	fn(snap)
}
