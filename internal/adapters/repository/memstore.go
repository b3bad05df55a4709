package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/scoredist/internal/domain/model"
	"github.com/okian/scoredist/pkg/metrics"
)

const (
	defaultCapacity              = 10_000
	defaultMetricsUpdateInterval = 5 * time.Second
)

// MemoryStore is a bounded in-memory Store. Analyses are kept in a ring
// ordered by insertion; when full, saving a new analysis evicts the oldest.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*model.Analysis
	ring  []string // insertion order, oldest at head
	head  int
	count int

	capacity              int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store with configuration options and starts
// its metrics updater, which runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		capacity:              defaultCapacity,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		byID:                  make(map[string]*model.Analysis),
		stopChan:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.ring = make([]string, s.capacity)

	metrics.UpdateStoredAnalyses(0)
	s.startMetricsUpdater(ctx)

	return s
}

// Save stores a.
func (s *MemoryStore) Save(_ context.Context, a *model.Analysis) error {
	if a == nil || a.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[a.ID]; exists {
		s.byID[a.ID] = a
		return nil
	}

	if s.count == s.capacity {
		delete(s.byID, s.ring[s.head])
		s.head = (s.head + 1) % s.capacity
		s.count--
	}
	s.ring[(s.head+s.count)%s.capacity] = a.ID
	s.count++
	s.byID[a.ID] = a
	return nil
}

// Get returns the analysis with id.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Recent returns up to n analyses, newest first.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]*model.Analysis, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > s.count {
		n = s.count
	}
	out := make([]*model.Analysis, 0, n)
	for i := 0; i < n; i++ {
		idx := (s.head + s.count - 1 - i) % s.capacity
		out = append(out, s.byID[s.ring[idx]])
	}
	return out, nil
}

// Count returns the number of stored analyses.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoredAnalyses(s.Count(ctx))
			}
		}
	}()
}
