// Package store provides the bounded in-memory candle history shared
// between the network ingest path and the evaluation sweep.
package store

import (
	"sync"

	"signal-systemv1/internal/model"
)

const DefaultCapacity = 50

// CandleStore keeps one bounded, time-ordered buffer per
// (instrument, timeframe) key. Writers append at the tail and the
// oldest bar is evicted once a buffer exceeds capacity. Buffers are
// created on first push and live for the process lifetime; a
// reconnect never resets them.
//
// Locking is per key: concurrent pushes to different keys never
// serialize, and a snapshot blocks a same-key writer only for the
// duration of one copy.
type CandleStore struct {
	capacity int

	mu      sync.RWMutex // guards the buffer map only
	buffers map[model.Key]*buffer
}

type buffer struct {
	mu      sync.Mutex
	candles []model.Candle
}

// New creates a store with the given per-key capacity. Values below 2
// fall back to DefaultCapacity.
func New(capacity int) *CandleStore {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &CandleStore{
		capacity: capacity,
		buffers:  make(map[model.Key]*buffer, 64),
	}
}

// Capacity returns the per-key buffer capacity.
func (s *CandleStore) Capacity() int { return s.capacity }

func (s *CandleStore) bucket(key model.Key) *buffer {
	s.mu.RLock()
	b := s.buffers[key]
	s.mu.RUnlock()
	if b != nil {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b = s.buffers[key]; b == nil {
		b = &buffer{candles: make([]model.Candle, 0, s.capacity+1)}
		s.buffers[key] = b
	}
	return b
}

// Push appends a candle in arrival order, evicting from the head once
// the buffer exceeds capacity.
func (s *CandleStore) Push(asset string, tf model.Timeframe, c model.Candle) {
	b := s.bucket(model.Key{Asset: asset, TF: tf})
	b.mu.Lock()
	b.candles = append(b.candles, c)
	if len(b.candles) > s.capacity {
		n := copy(b.candles, b.candles[len(b.candles)-s.capacity:])
		b.candles = b.candles[:n]
	}
	b.mu.Unlock()
}

// Seed pre-fills an empty buffer with historical candles, keeping at
// most the newest capacity entries. A non-empty buffer is left
// untouched so live data always wins over late prefill.
func (s *CandleStore) Seed(asset string, tf model.Timeframe, candles []model.Candle) bool {
	b := s.bucket(model.Key{Asset: asset, TF: tf})
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.candles) > 0 {
		return false
	}
	if len(candles) > s.capacity {
		candles = candles[len(candles)-s.capacity:]
	}
	b.candles = append(b.candles, candles...)
	return true
}

// Snapshot returns an ordered copy of the buffer for the key. Readers
// own the copy; indicator math never aliases store memory.
func (s *CandleStore) Snapshot(asset string, tf model.Timeframe) []model.Candle {
	s.mu.RLock()
	b := s.buffers[model.Key{Asset: asset, TF: tf}]
	s.mu.RUnlock()
	if b == nil {
		return nil
	}
	b.mu.Lock()
	out := append([]model.Candle(nil), b.candles...)
	b.mu.Unlock()
	return out
}

// Len returns the number of candles currently buffered for the key.
func (s *CandleStore) Len(asset string, tf model.Timeframe) int {
	s.mu.RLock()
	b := s.buffers[model.Key{Asset: asset, TF: tf}]
	s.mu.RUnlock()
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.candles)
}

// Keys returns every key that has ever received a candle.
func (s *CandleStore) Keys() []model.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]model.Key, 0, len(s.buffers))
	for k := range s.buffers {
		keys = append(keys, k)
	}
	return keys
}
