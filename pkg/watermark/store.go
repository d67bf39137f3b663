package watermark

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidEntry indicates a stored watermark could not be decoded.
var ErrInvalidEntry = errors.New("invalid watermark entry")

// Store loads and saves the watermark of one trigger instance.
type Store interface {
	// Load returns the stored watermark. ok is false when none was saved yet.
	Load(ctx context.Context) (value string, ok bool, err error)

	// Save replaces the stored watermark.
	Save(ctx context.Context, value string) error

	// Reset forgets the stored watermark so the next poll uses the initial lookback.
	Reset(ctx context.Context) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Entry is the persisted form of a watermark.
type Entry struct {
	LastPollTime string    `json:"lastPollTime"`
	SavedAt      time.Time `json:"savedAt"`
}

// MemoryStore keeps the watermark in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	value string
	set   bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a store holding value.
func NewMemoryStoreWith(value string) *MemoryStore {
	return &MemoryStore{value: value, set: true}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	drataWatermarkOpsTotal.WithLabelValues("load", resultFor(s.set)).Inc()
	return s.value, s.set, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.set = true
	drataWatermarkOpsTotal.WithLabelValues("save", "ok").Inc()
	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.set = false
	drataWatermarkOpsTotal.WithLabelValues("reset", "ok").Inc()
	return nil
}

func resultFor(found bool) string {
	if found {
		return "hit"
	}
	return "miss"
}
