package scoring

import (
	"fmt"
	"sync"
)

// SmootherStore holds the per-(instrument, mode) exponential smoothing
// state. It is the one piece of cross-call mutable state in the engine:
// the caller owns one store and injects it into every pipeline call.
//
// Access is guarded with one lock per key so concurrent bulk calls over
// different instruments never contend. Concurrent calls for the SAME key
// serialize on the key lock; the caller must still issue them in the order
// it wants the EMA sequence applied, since the smoothing contract is
// defined over an ordered sequence of calls.
type SmootherStore struct {
	mu      sync.Mutex
	entries map[string]*smootherEntry
}

type smootherEntry struct {
	mu     sync.Mutex
	value  float64
	seeded bool
}

// NewSmootherStore creates an empty store
func NewSmootherStore() *SmootherStore {
	return &SmootherStore{entries: make(map[string]*smootherEntry)}
}

// Smooth applies y_t = alpha*x_t + (1-alpha)*y_{t-1} for the given key,
// seeding y_0 = x_0 on the first call
func (s *SmootherStore) Smooth(instrument, mode string, alpha, x float64) float64 {
	e := s.entry(smootherKey(instrument, mode))

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.seeded {
		e.value = x
		e.seeded = true
		return e.value
	}

	e.value = alpha*x + (1-alpha)*e.value
	return e.value
}

// Peek returns the current smoothed value without advancing it
func (s *SmootherStore) Peek(instrument, mode string) (float64, bool) {
	e := s.entry(smootherKey(instrument, mode))

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, e.seeded
}

// Reset drops the state for one key
func (s *SmootherStore) Reset(instrument, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, smootherKey(instrument, mode))
}

func (s *SmootherStore) entry(key string) *smootherEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &smootherEntry{}
		s.entries[key] = e
	}
	return e
}

func smootherKey(instrument, mode string) string {
	return fmt.Sprintf("%s:%s", instrument, mode)
}
