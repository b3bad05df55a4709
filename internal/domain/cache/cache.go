// Package cache keeps recently completed analyses keyed by the fingerprint
// of their input. Fits are deterministic for a given sample, seed and
// fitter configuration, so a repeated request can reuse the stored result.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/scoredist/internal/domain/model"
	"github.com/okian/scoredist/pkg/metrics"
)

const defaultCapacity = 1024

// Cache stores analyses by fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (*model.Analysis, bool)
	Add(ctx context.Context, key string, a *model.Analysis)
	Len() int
	Purge()
}

// LRU implements Cache with a fixed-size least-recently-used policy.
type LRU struct {
	capacity int
	entries  *lru.Cache[string, *model.Analysis]
}

// NewLRU creates a cache with configuration options.
func NewLRU(opts ...Option) (*LRU, error) {
	c := &LRU{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.New[string, *model.Analysis](c.capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached analysis for key.
func (c *LRU) Get(_ context.Context, key string) (*model.Analysis, bool) {
	a, ok := c.entries.Get(key)
	if ok {
		metrics.RecordCacheHit()
	} else {
		metrics.RecordCacheMiss()
	}
	return a, ok
}

// Add stores a, evicting the least recently used entry when full.
func (c *LRU) Add(_ context.Context, key string, a *model.Analysis) {
	c.entries.Add(key, a)
}

// Len returns the number of cached analyses.
func (c *LRU) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *LRU) Purge() { c.entries.Purge() }

// Fingerprint hashes a sample together with everything else that decides
// the fit outcome. Values are hashed by their IEEE-754 bits in order.
func Fingerprint(sample []float64, seed uint64, maxComponents int, settings string) string {
	h := xxhash.New()
	var buf [8]byte
	for _, x := range sample {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		_, _ = h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(maxComponents)) //nolint:gosec // non-negative by validation
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(settings)
	return fmt.Sprintf("%016x", h.Sum64())
}
