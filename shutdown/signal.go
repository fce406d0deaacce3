package shutdown

import (
	"os"
	"sync"
)

// SignalCounter counts shutdown signals: the first asks for a graceful stop,
// the forceAfter-th calls onForce. It remembers the first signal so the
// process can exit with the matching code.
//
//	counter := NewSignalCounter(2, func() { os.Exit(core.ExitCodeError) })
//	for sig := range sigChan {
//	    if counter.Increment(sig) == 1 {
//	        cancel()
//	    }
//	}
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{
		forceAfter: forceAfter,
		onForce:    onForce,
	}
}

// Increment counts sig and returns the new count. onForce is called, while
// holding the lock, once the count reaches forceAfter.
func (s *SignalCounter) Increment(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.first == nil {
		s.first = sig
	}
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the current signal count.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// First returns the first signal received, or nil.
func (s *SignalCounter) First() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

// SetForceCallback changes the force callback.
func (s *SignalCounter) SetForceCallback(onForce func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onForce = onForce
}
