// Package lock serializes work per entity. Callers lock "event:<id>" around
// admission decisions and "ticket:<id>" around check-ins; different keys never
// contend.
package lock

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Locker hands out exclusive access to a key until unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func EventKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

func TicketKey(ticketID int64) string {
	return fmt.Sprintf("ticket:%d", ticketID)
}

type entry struct {
	sem  chan struct{}
	refs int // guarded by the map's per-key compute
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once nobody holds or waits for them.
type KeyedMutex struct {
	locks *xsync.MapOf[string, *entry]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: xsync.NewMapOf[string, *entry]()}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	e, _ := k.locks.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	return func() {
		<-e.sem
		k.release(key)
	}, nil
}

func (k *KeyedMutex) release(key string) {
	k.locks.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return old, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	return k.locks.Size()
}
