// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package shellcache

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Cache serves the active shell cache in front of the network handlers.
type Cache struct {
	store    Store
	manifest Manifest

	mu   sync.RWMutex
	name string
}

// NewCache returns a cache serving manifest paths from the cache named name.
func NewCache(store Store, manifest Manifest, name string) *Cache {
	return &Cache{store: store, manifest: manifest, name: name}
}

// Name returns the active cache name.
func (c *Cache) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.name
}

// Activate switches to another installed cache.
func (c *Cache) Activate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.name = name
}

// Manifest returns the paths served from the cache.
func (c *Cache) Manifest() Manifest {
	return c.manifest
}

// Middleware answers GET requests for cached manifest paths without calling
// the next handlers. Misses fall through to the network.
func (c *Cache) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead {
			ctx.Next()

			return
		}

		p := ctx.Request.URL.Path

		name := c.Name()
		if name == "" || !c.manifest.Contains(p) {
			ctx.Next()

			return
		}

		a, err := c.store.Get(ctx.Request.Context(), name, p)
		if err != nil {
			if !errors.Is(err, ErrNotCached) {
				log.Printf("Shell cache - reading %s from %s: %v", p, name, err)
			}

			ctx.Header("X-Shell-Cache", "MISS")
			ctx.Next()

			return
		}

		ctx.Header("X-Shell-Cache", "HIT")
		ctx.Header("X-Shell-Cache-Name", name)
		ctx.Data(http.StatusOK, a.ContentType, a.Body)
		ctx.Abort()
	}
}
