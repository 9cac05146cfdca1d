package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// GeneratorFunc produces an artifact payload on a cache miss. It is the
// expensive path (an external model call).
type GeneratorFunc func(ctx context.Context) (json.RawMessage, error)

// Cache is a bounded, in-process artifact cache keyed by
// (fingerprint, kind) with least-recently-used eviction. Safe for
// concurrent use; concurrent misses for the same key share a single
// generator invocation.
//
// A generator failure is never cached; the next call retries from
// scratch.
type Cache struct {
	entries *lru.Cache[string, json.RawMessage]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCache creates a Cache holding at most capacity entries.
func NewCache(capacity int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := lru.New[string, json.RawMessage](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating artifact cache: %w", err)
	}

	return &Cache{
		entries: entries,
		logger:  logger,
	}, nil
}

// GetOrCreate returns the cached payload for (fp, kind), or invokes
// generate, stores the result, and returns it. A miss is the normal path,
// not an error.
func (c *Cache) GetOrCreate(ctx context.Context, fp Fingerprint, kind Kind, generate GeneratorFunc) (json.RawMessage, error) {
	key := cacheKey(fp, kind)

	if payload, ok := c.entries.Get(key); ok {
		c.logger.Debug("artifact cache hit", "kind", kind, "fingerprint", fp)
		return payload, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A racing caller may have filled the entry between the miss
		// and joining the flight.
		if payload, ok := c.entries.Get(key); ok {
			return payload, nil
		}

		c.logger.Debug("artifact cache miss, generating", "kind", kind, "fingerprint", fp)
		payload, err := generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("generating %s artifact: %w", kind, err)
		}

		c.entries.Add(key, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func cacheKey(fp Fingerprint, kind Kind) string {
	return string(fp) + "/" + string(kind)
}
