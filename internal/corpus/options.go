package corpus

import "time"

// SearchOption configures a similarity search using functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK          int32
	minSimilarity float32
	filter        map[string]string
	timeout       time.Duration
}

// WithTopK sets the maximum number of matches returned. Default 5.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithMinSimilarity drops matches scoring below the threshold.
// Zero (the default) disables the cutoff.
func WithMinSimilarity(threshold float32) SearchOption {
	return func(c *searchConfig) {
		c.minSimilarity = threshold
	}
}

// WithFilter restricts matches to items whose metadata contains the given
// key/value pair. Multiple calls AND together.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout bounds the vector search. Default 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
