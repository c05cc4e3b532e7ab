package acorn

import (
	"io"
	"sync"
)

// lifetimeCache holds the singletons of one container. An entry is written
// at most once and never changes afterwards.
type lifetimeCache struct {
	mu        sync.RWMutex
	instances map[tokenKey]any
	locks     map[tokenKey]*sync.Mutex

	// closers holds cached singletons that implement io.Closer, in the
	// order they were stored. Shutdown iterates them in reverse.
	closers []io.Closer
}

func newLifetimeCache() *lifetimeCache {
	return &lifetimeCache{
		instances: make(map[tokenKey]any),
		locks:     make(map[tokenKey]*sync.Mutex),
	}
}

func (lc *lifetimeCache) get(k tokenKey) (any, bool) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	inst, ok := lc.instances[k]
	return inst, ok
}

// getOrCreate returns the cached instance for k, or runs create under the
// per-token lock and stores its result. Concurrent callers for the same
// token block until the single construction finishes and then observe its
// result. A failed create stores nothing, so a later call retries.
func (lc *lifetimeCache) getOrCreate(k tokenKey, create func() (any, error)) (inst any, created bool, err error) {
	if inst, ok := lc.get(k); ok {
		return inst, false, nil
	}

	lock := lc.lockFor(k)
	lock.Lock()
	defer lock.Unlock()

	if inst, ok := lc.get(k); ok {
		return inst, false, nil
	}

	inst, err = create()
	if err != nil {
		return nil, false, err
	}

	lc.mu.Lock()
	lc.instances[k] = inst
	if closer, ok := inst.(io.Closer); ok {
		lc.closers = append(lc.closers, closer)
	}
	lc.mu.Unlock()

	return inst, true, nil
}

func (lc *lifetimeCache) lockFor(k tokenKey) *sync.Mutex {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lock, ok := lc.locks[k]
	if !ok {
		lock = new(sync.Mutex)
		lc.locks[k] = lock
	}
	return lock
}

func (lc *lifetimeCache) contains(k tokenKey) bool {
	_, ok := lc.get(k)
	return ok
}

// drain hands over the recorded closers, newest first, and forgets them.
func (lc *lifetimeCache) drain() []io.Closer {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	out := make([]io.Closer, 0, len(lc.closers))
	for i := len(lc.closers) - 1; i >= 0; i-- {
		out = append(out, lc.closers[i])
	}
	lc.closers = nil
	return out
}
