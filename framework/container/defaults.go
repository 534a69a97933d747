package container

import (
	"sync"
	"sync/atomic"
)

// Defaults is a process-wide table of fallback values, consulted only when a
// container has no value and no resolver of its own for a key.
//
// The table is write-once-before-first-read: Provide fails as soon as any
// container has looked something up in it.
type Defaults struct {
	mu     sync.RWMutex
	values map[Handle]any
	frozen atomic.Bool
}

// Global is the defaults table used by containers created without WithDefaults.
var Global = NewDefaults()

// NewDefaults creates an empty, writable defaults table.
func NewDefaults() *Defaults {
	return &Defaults{values: make(map[Handle]any)}
}

// Provide stores a default value for k.
func Provide[T any](d *Defaults, k *Key[T], v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frozen.Load() {
		return newError(k, nil, ErrDefaultsFrozen)
	}
	d.values[k] = v
	return nil
}

// Frozen reports whether the table has been read and no longer accepts values.
func (d *Defaults) Frozen() bool { return d.frozen.Load() }

func (d *Defaults) lookup(h Handle) (any, bool) {
	if d == nil {
		return nil, false
	}
	d.frozen.Store(true)
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[h]
	return v, ok
}
