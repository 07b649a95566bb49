package dedup

import (
	"sync"

	"github.com/rs/zerolog"
)

// KeyedMutex manages one mutex per key, created on first use.
type KeyedMutex struct {
	logger   zerolog.Logger
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewKeyedMutex creates a new KeyedMutex
func NewKeyedMutex(logger zerolog.Logger) *KeyedMutex {
	return &KeyedMutex{
		logger:  logger.With().Str("component", "KeyedMutex").Logger(),
		mutexes: make(map[string]*sync.Mutex),
	}
}

// Get returns the mutex for key using double-checked locking
func (km *KeyedMutex) Get(key string) *sync.Mutex {
	if mutex := km.tryGetExisting(key); mutex != nil {
		return mutex
	}
	return km.getOrCreate(key)
}

// Lock locks the mutex for key and returns its unlock function.
func (km *KeyedMutex) Lock(key string) func() {
	mutex := km.Get(key)
	mutex.Lock()
	return mutex.Unlock
}

// Count returns the current number of mutexes
func (km *KeyedMutex) Count() int {
	km.mapMutex.RLock()
	defer km.mapMutex.RUnlock()
	return len(km.mutexes)
}

// Cleanup drops mutexes for keys not in active. Only call it when no holder
// can still be using a dropped key, for example between sweeps.
func (km *KeyedMutex) Cleanup(active []string) int {
	activeSet := make(map[string]struct{}, len(active))
	for _, key := range active {
		activeSet[key] = struct{}{}
	}

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	removed := 0
	for key := range km.mutexes {
		if _, ok := activeSet[key]; !ok {
			delete(km.mutexes, key)
			removed++
		}
	}
	if removed > 0 {
		km.logger.Debug().
			Int("removed_mutexes", removed).
			Int("remaining_mutexes", len(km.mutexes)).
			Msg("Cleaned up unused mutexes")
	}
	return removed
}

func (km *KeyedMutex) tryGetExisting(key string) *sync.Mutex {
	km.mapMutex.RLock()
	defer km.mapMutex.RUnlock()
	return km.mutexes[key]
}

func (km *KeyedMutex) getOrCreate(key string) *sync.Mutex {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	// another goroutine may have created it
	if mutex, exists := km.mutexes[key]; exists {
		return mutex
	}
	mutex := &sync.Mutex{}
	km.mutexes[key] = mutex
	return mutex
}
