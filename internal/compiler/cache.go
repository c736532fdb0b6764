package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes a Compiler by source text and options. The wrapped
// compiler must be a pure function of its inputs.
type Cached struct {
	next   Compiler
	cache  *lru.Cache[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next with an LRU cache holding up to size results.
func NewCached(next Compiler, size int) (*Cached, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Compile returns the cached result for (source, opts) or compiles and
// stores it. Failures are never cached.
func (c *Cached) Compile(ctx context.Context, source string, opts Options) (string, error) {
	key := cacheKey(source, opts)
	if out, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return out, nil
	}
	c.misses.Add(1)

	out, err := c.next.Compile(ctx, source, opts)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached results.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// cacheKey hashes the source with the options a compiler sees. Modular and
// Silent are consumed by the build and do not change compiled text.
func cacheKey(source string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%t\x00%q\x00%q\x00%q\x00%t\x00%t\x00",
		opts.Compact, opts.Type, opts.Template, opts.Brackets, opts.Expr, opts.Whitespace)
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}
