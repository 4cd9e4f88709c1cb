package pubsubx

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

type MutationKind string

const (
	MutationKindDelete  MutationKind = "delete"
	MutationKindPublish MutationKind = "publish"
	MutationKindCreate  MutationKind = "create"
)

func (k MutationKind) String() string {
	return string(k)
}

// MutationState only moves forward: Idle -> Pending -> Applied | Failed.
type MutationState int

const (
	MutationIdle MutationState = iota
	MutationPending
	MutationApplied
	MutationFailed
)

func (s MutationState) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationApplied:
		return "applied"
	case MutationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s MutationState) IsTerminal() bool {
	return s == MutationApplied || s == MutationFailed
}

// Outcome is the result handed back to the caller of a mutation.
type Outcome struct {
	Success bool
	Reason  error
}

// Mutation tracks a single user-initiated write. A terminal mutation is never
// reused; issuing the same action again creates a new Mutation.
type Mutation struct {
	ID     string
	Kind   MutationKind
	Target string

	exec func(ctx context.Context) error

	mu         sync.RWMutex
	state      MutationState
	err        error
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

func newMutation(kind MutationKind, target string, exec func(ctx context.Context) error) *Mutation {
	return &Mutation{
		ID:     ksuid.New().String(),
		Kind:   kind,
		Target: target,
		exec:   exec,
		state:  MutationIdle,
		done:   make(chan struct{}),
	}
}

func (m *Mutation) State() MutationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err is the failure reason once the mutation is Failed.
func (m *Mutation) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Duration is the time spent Pending. It is zero until the mutation is terminal.
func (m *Mutation) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.finishedAt.IsZero() {
		return 0
	}
	return m.finishedAt.Sub(m.startedAt)
}

// Done is closed when the mutation reaches a terminal state.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Outcome returns the zero Outcome while the mutation is not terminal.
func (m *Mutation) Outcome() Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.state {
	case MutationApplied:
		return Outcome{Success: true}
	case MutationFailed:
		return Outcome{Reason: m.err}
	default:
		return Outcome{}
	}
}

// Wait blocks until the mutation is terminal or ctx is done.
func (m *Mutation) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-m.done:
		return m.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (m *Mutation) start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MutationIdle {
		return false
	}
	m.state = MutationPending
	m.startedAt = time.Now()
	return true
}

func (m *Mutation) finish(err error) MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MutationPending {
		return m.state
	}
	if err != nil {
		m.state = MutationFailed
		m.err = err
	} else {
		m.state = MutationApplied
	}
	m.finishedAt = time.Now()
	close(m.done)
	return m.state
}
