package application

import (
	"context"
	"slices"
	"sync"
)

// KeyedLocker is an in-process OrganizationLocker. Each organization id maps
// to a one-slot channel, so waiting honours context cancellation.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*lockSlot)}
}

// Lock acquires every organization in sorted order and returns a release func.
func (l *KeyedLocker) Lock(ctx context.Context, orgIDs ...string) (func(), error) {
	keys := normalizeKeys(orgIDs)
	acquired := make([]string, 0, len(keys))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.unlock(acquired[i])
		}
	}
	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *KeyedLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, slot)
		return ctx.Err()
	}
}

func (l *KeyedLocker) unlock(key string) {
	l.mu.Lock()
	slot := l.slots[key]
	l.mu.Unlock()
	if slot == nil {
		return
	}
	<-slot.ch
	l.release(key, slot)
}

func (l *KeyedLocker) release(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func normalizeKeys(orgIDs []string) []string {
	keys := make([]string, 0, len(orgIDs))
	for _, id := range orgIDs {
		if id != "" {
			keys = append(keys, id)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
