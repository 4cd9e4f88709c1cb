package pubsubx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinia/emulator-console/emulatorx"
)

func testConfig(projectID string) *emulatorx.ConnectionConfig {
	return &emulatorx.ConnectionConfig{Host: "localhost", Port: 8085, ProjectID: projectID}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should start unset and not loaded", func(t *testing.T) {
		s := NewStore(newTestLogger(), newFakeClient(), nil)

		snap := s.Snapshot()
		assert.True(t, snap.IsUnset())
		assert.False(t, snap.Loaded)
		assert.Empty(t, snap.Topics)
	})

	t.Run("should fail a refresh without config", func(t *testing.T) {
		client := newFakeClient()
		s := NewStore(newTestLogger(), client, nil)

		applied, err := s.Refresh(ctx, nil)
		assert.False(t, applied)
		kind, ok := FailureKindOf(err)
		require.True(t, ok)
		assert.Equal(t, FailureConfigUnset, kind)
		assert.Zero(t, client.callCount(OperationListTopics))
	})

	t.Run("should replace the collection keeping the emulator order", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a", "b")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		require.True(t, s.SetConfig(cfg))

		applied, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, applied)

		snap := s.Snapshot()
		assert.True(t, snap.Loaded)
		assert.Equal(t, []string{"a", "b"}, snap.Topics.ShortNames())
		assert.Equal(t, []string{"projects/p1/topics/a", "projects/p1/topics/b"}, snap.Topics.Names())
	})

	t.Run("should tell an empty emulator apart from a loading one", func(t *testing.T) {
		s := NewStore(newTestLogger(), newFakeClient(), nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)
		assert.False(t, s.Snapshot().Loaded)

		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)

		snap := s.Snapshot()
		assert.True(t, snap.Loaded)
		assert.Empty(t, snap.Topics)
	})

	t.Run("should keep the previous collection when a refresh fails", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)
		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)

		client.listErr = NewTransportFailure(OperationListTopics, assert.AnError)
		applied, err := s.Refresh(ctx, cfg)
		assert.False(t, applied)
		kind, ok := FailureKindOf(err)
		require.True(t, ok)
		assert.Equal(t, FailureTransport, kind)

		assert.Equal(t, []string{"a"}, s.Snapshot().Topics.ShortNames())
	})

	t.Run("should drop duplicated names", func(t *testing.T) {
		client := newFakeClient()
		client.topics["p1"] = []string{"projects/p1/topics/a", "projects/p1/topics/a", "projects/p1/topics/b"}
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)

		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, s.Snapshot().Topics.ShortNames())
	})

	t.Run("should discard the collection when the config changes", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)
		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)

		assert.False(t, s.SetConfig(testConfig("p1")))
		assert.True(t, s.Snapshot().Loaded)

		assert.True(t, s.SetConfig(nil))
		snap := s.Snapshot()
		assert.True(t, snap.IsUnset())
		assert.False(t, snap.Loaded)
		assert.Empty(t, snap.Topics)
	})

	t.Run("should not refresh for a config it does not target", func(t *testing.T) {
		client := newFakeClient()
		s := NewStore(newTestLogger(), client, nil)
		s.SetConfig(testConfig("p1"))

		applied, err := s.Refresh(ctx, testConfig("p2"))
		assert.NoError(t, err)
		assert.False(t, applied)
		assert.Zero(t, client.callCount(OperationListTopics))
	})

	t.Run("should discard a late response for a superseded config", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("A", "from-a")
		client.setTopics("B", "from-b")
		gateA := client.gate("A")
		s := NewStore(newTestLogger(), client, nil)

		cfgA, cfgB := testConfig("A"), testConfig("B")
		s.SetConfig(cfgA)

		type result struct {
			applied bool
			err     error
		}
		lateA := make(chan result, 1)
		go func() {
			applied, err := s.Refresh(ctx, cfgA)
			lateA <- result{applied, err}
		}()
		require.Equal(t, "A", <-client.started)

		s.SetConfig(cfgB)
		applied, err := s.Refresh(ctx, cfgB)
		require.NoError(t, err)
		require.True(t, applied)
		<-client.started

		close(gateA)
		r := <-lateA
		assert.NoError(t, r.err)
		assert.False(t, r.applied)

		snap := s.Snapshot()
		assert.True(t, snap.Config.Equal(cfgB))
		assert.Equal(t, []string{"from-b"}, snap.Topics.ShortNames())
	})

	t.Run("should discard a late failure for a superseded config", func(t *testing.T) {
		client := newFakeClient()
		client.listErr = NewTransportFailure(OperationListTopics, assert.AnError)
		gateA := client.gate("A")
		s := NewStore(newTestLogger(), client, nil)
		s.SetConfig(testConfig("A"))

		lateA := make(chan error, 1)
		go func() {
			_, err := s.Refresh(ctx, testConfig("A"))
			lateA <- err
		}()
		<-client.started

		s.SetConfig(testConfig("B"))
		close(gateA)
		assert.NoError(t, <-lateA)
	})

	t.Run("should discard an older response for the same config", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "old")
		gate := client.gate("p1")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)

		older := make(chan bool, 1)
		go func() {
			applied, _ := s.Refresh(ctx, cfg)
			older <- applied
		}()
		<-client.started

		client.ungate("p1")
		client.setTopics("p1", "old", "new")
		applied, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)
		require.True(t, applied)
		<-client.started

		close(gate)
		assert.False(t, <-older)
		assert.Equal(t, []string{"old", "new"}, s.Snapshot().Topics.ShortNames())
	})

	t.Run("should remove a topic by full name", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a", "b")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)
		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)

		before := s.Snapshot()
		assert.True(t, s.RemoveByName("projects/p1/topics/a"))
		assert.Equal(t, []string{"b"}, s.Snapshot().Topics.ShortNames())
		assert.Equal(t, []string{"a", "b"}, before.Topics.ShortNames(), "snapshots handed out must not change")

		assert.False(t, s.RemoveByName("projects/p1/topics/missing"))
		assert.Equal(t, []string{"b"}, s.Snapshot().Topics.ShortNames())
	})

	t.Run("should not remove for another config", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a")
		s := NewStore(newTestLogger(), client, nil)
		cfg := testConfig("p1")
		s.SetConfig(cfg)
		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)

		assert.False(t, s.removeByNameFor(testConfig("p2"), "projects/p1/topics/a"))
		assert.Len(t, s.Snapshot().Topics, 1)
	})

	t.Run("should notify subscribers on every change", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a")
		s := NewStore(newTestLogger(), client, nil)

		var mu sync.Mutex
		var seen []Snapshot
		unsubscribe := s.Subscribe(func(snap Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, snap)
		})

		cfg := testConfig("p1")
		s.SetConfig(cfg)
		_, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)
		s.RemoveByName("projects/p1/topics/a")

		unsubscribe()
		s.SetConfig(nil)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 4)
		assert.True(t, seen[0].IsUnset())
		assert.False(t, seen[1].Loaded)
		assert.Equal(t, []string{"a"}, seen[2].Topics.ShortNames())
		assert.True(t, seen[3].Loaded)
		assert.Empty(t, seen[3].Topics)
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i].Version, seen[i-1].Version)
		}
	})

	t.Run("should keep notifying when an observer panics", func(t *testing.T) {
		client := newFakeClient()
		client.setTopics("p1", "a")
		s := NewStore(newTestLogger(), client, nil)

		var mu sync.Mutex
		calls := 0
		unsubscribePanicking := s.Subscribe(func(Snapshot) { panic("observer failure") })
		unsubscribe := s.Subscribe(func(Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			calls++
		})
		defer unsubscribePanicking()
		defer unsubscribe()

		cfg := testConfig("p1")
		require.True(t, s.SetConfig(cfg))
		applied, err := s.Refresh(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, applied)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, calls)
		assert.Equal(t, []string{"a"}, s.Snapshot().Topics.ShortNames())
	})
}
