package clients

import (
	"context"
	"log/slog"
	"sync"
)

// HandleCache keeps the most recently used model handle. It holds at most one
// handle, keyed by the credential it was built for; asking for a different
// credential builds a new handle and drops the old one.
type HandleCache struct {
	factory Factory

	mu         sync.Mutex
	credential string
	handle     Generator
}

func NewHandleCache(factory Factory) *HandleCache {
	return &HandleCache{factory: factory}
}

// Get returns the handle bound to credential, building it on first use.
func (c *HandleCache) Get(ctx context.Context, credential string) (Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil && c.credential == credential {
		return c.handle, nil
	}

	if c.handle != nil {
		slog.Info("[HandleCache] Credential changed, replacing model handle")
	}
	c.handle = nil
	c.credential = ""

	handle, err := c.factory(ctx, credential)
	if err != nil {
		return nil, err
	}

	c.handle = handle
	c.credential = credential
	return handle, nil
}
