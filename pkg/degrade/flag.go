package degrade

import "sync/atomic"

// Flag is a boolean safe for concurrent reads and writes without locking.
// The zero value is cleared.
type Flag struct {
	v atomic.Bool
}

// Load reports whether degrade mode is on.
func (f *Flag) Load() bool { return f.v.Load() }

// Set turns degrade mode on and reports whether it changed.
func (f *Flag) Set() bool { return !f.v.Swap(true) }

// Clear turns degrade mode off and reports whether it changed.
func (f *Flag) Clear() bool { return f.v.Swap(false) }

// Store sets the flag to on, or clears it when on is false.
func (f *Flag) Store(on bool) { f.v.Store(on) }
