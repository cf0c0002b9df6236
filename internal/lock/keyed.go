// Package lock provides an in-process mutual-exclusion primitive scoped to a key.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when the key is held and the caller may not (or can no
// longer) wait for it.
var ErrBusy = errors.New("lock busy")

type Mode string

const (
	// ModeWait blocks up to the configured wait timeout.
	ModeWait Mode = "wait"
	// ModeFailFast returns ErrBusy as soon as the key is found held.
	ModeFailFast Mode = "failfast"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeWait, ModeFailFast:
		return Mode(s), true
	}
	return "", false
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed serializes holders of the same key. Distinct keys never contend.
// Entries are dropped once nobody holds or waits for them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	mode    Mode
	wait    time.Duration
}

// NewKeyed builds a keyed lock. In ModeWait a non-positive wait means the
// caller's context is the only bound.
func NewKeyed(mode Mode, wait time.Duration) *Keyed {
	if mode == "" {
		mode = ModeWait
	}
	return &Keyed{entries: make(map[string]*entry), mode: mode, wait: wait}
}

// Acquire takes the lock for key and returns its release func. Release is
// safe to call more than once.
//
// A cancelled ctx returns ctx.Err(); an exhausted wait returns ErrBusy.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	e := k.ref(key)

	var err error
	if k.mode == ModeFailFast {
		if !e.sem.TryAcquire(1) {
			err = ErrBusy
		}
	} else {
		wctx, cancel := ctx, context.CancelFunc(func() {})
		if k.wait > 0 {
			wctx, cancel = context.WithTimeout(ctx, k.wait)
		}
		err = e.sem.Acquire(wctx, 1)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = ErrBusy
			}
		}
	}
	if err != nil {
		k.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.unref(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
