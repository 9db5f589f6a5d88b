package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned by Acquire when another owner holds the key.
var ErrLocked = errors.New("lock: held by another owner")

// Locker hands out exclusive, non-blocking leases on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, key string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrLocked
	}
	m.held[key] = struct{}{}
	return &memoryLease{parent: m, key: key}, nil
}

type memoryLease struct {
	parent *Memory
	key    string
	once   sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.parent.mu.Lock()
		delete(l.parent.held, l.key)
		l.parent.mu.Unlock()
	})
	return nil
}
