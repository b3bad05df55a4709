package cache

// Option applies a configuration option to the LRU cache.
type Option func(*LRU)

// WithCapacity sets the maximum number of cached analyses.
func WithCapacity(n int) Option {
	return func(c *LRU) {
		if n > 0 {
			c.capacity = n
		}
	}
}
