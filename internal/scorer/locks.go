package scorer

import "sync"

// KeyedLock provides per-requirement advisory locks. The impact assessor's
// re-scoring serializes with any in-flight scoring of the same requirement
// through these, instead of a global lock.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLock creates an empty lock set.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{
		locks: make(map[string]*sync.Mutex),
	}
}

func (k *KeyedLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

// Lock acquires the lock for key, creating it on first use.
func (k *KeyedLock) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the lock for key.
func (k *KeyedLock) Unlock(key string) {
	k.get(key).Unlock()
}
