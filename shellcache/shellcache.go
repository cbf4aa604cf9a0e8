// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package shellcache keeps a versioned copy of the page shell (HTML, style,
// script, icon) and answers requests for it cache-first.
package shellcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"mime"
	"path"
	"strings"
	"time"
)

// DefaultPrefix names the caches of the page shell.
const DefaultPrefix = "eaterymap-shell"

// DefaultManifest lists the shell assets in install order.
var DefaultManifest = Manifest{"/", "/index.html", "/style.css", "/app.js", "/icon.svg"}

// ErrNotCached is returned by a Store for paths it does not hold.
var ErrNotCached = errors.New("shellcache: not cached")

// Manifest is the ordered list of asset paths that make up the shell.
type Manifest []string

// Validate checks that every entry is an absolute, unique path.
func (m Manifest) Validate() error {
	if len(m) == 0 {
		return errors.New("shellcache: empty manifest")
	}

	seen := make(map[string]bool, len(m))

	for _, p := range m {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("shellcache: manifest path %q is not absolute", p)
		}

		if seen[p] {
			return fmt.Errorf("shellcache: manifest path %q listed twice", p)
		}

		seen[p] = true
	}

	return nil
}

// Contains reports whether p is part of the manifest.
func (m Manifest) Contains(p string) bool {
	for _, e := range m {
		if e == p {
			return true
		}
	}

	return false
}

// Asset is a cached response body.
type Asset struct {
	Path        string
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// ContentTypeFor guesses the media type of an asset path. "/" is HTML.
func ContentTypeFor(p string) string {
	if strings.HasSuffix(p, "/") {
		return "text/html; charset=utf-8"
	}

	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

// CacheName derives the cache name from the asset contents, so any change to
// the shell yields a new name.
func CacheName(prefix string, assets []*Asset) string {
	h := sha256.New()

	for _, a := range assets {
		h.Write([]byte(a.Path))
		h.Write([]byte{0})
		h.Write(a.Body)
		h.Write([]byte{0})
	}

	return prefix + "-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// Store holds named caches of assets.
type Store interface {
	// Put stores all assets under name, or none of them.
	Put(ctx context.Context, name string, assets []*Asset) error

	// Get returns the asset cached under name for path, or ErrNotCached.
	Get(ctx context.Context, name, path string) (*Asset, error)

	// Names lists the cache names present in the store, newest first.
	Names(ctx context.Context) ([]string, error)

	// Delete removes a cache.
	Delete(ctx context.Context, name string) error
}

// Origin produces the network version of an asset.
type Origin interface {
	Fetch(ctx context.Context, path string) (*Asset, error)
}

// Install fetches every manifest asset from origin and stores them together
// under a content-derived name. If any fetch fails nothing is stored. Older
// caches sharing prefix are deleted once the new one is in place.
func Install(ctx context.Context, store Store, origin Origin, prefix string, manifest Manifest) (string, error) {
	if err := manifest.Validate(); err != nil {
		return "", err
	}

	assets := make([]*Asset, 0, len(manifest))

	for _, p := range manifest {
		a, err := origin.Fetch(ctx, p)
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", p, err)
		}

		a.Path = p
		if a.ContentType == "" {
			a.ContentType = ContentTypeFor(p)
		}

		assets = append(assets, a)
	}

	checkReferences(assets, manifest)

	name := CacheName(prefix, assets)
	if err := store.Put(ctx, name, assets); err != nil {
		return "", fmt.Errorf("storing cache %s: %w", name, err)
	}

	if err := prune(ctx, store, prefix, name); err != nil {
		return name, err
	}

	log.Printf("📦 Installed shell cache %s (%d assets)", name, len(assets))

	return name, nil
}

func prune(ctx context.Context, store Store, prefix, keep string) error {
	names, err := store.Names(ctx)
	if err != nil {
		return fmt.Errorf("listing caches: %w", err)
	}

	var errs []error

	for _, n := range names {
		if n == keep || !strings.HasPrefix(n, prefix+"-") {
			continue
		}

		if err := store.Delete(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("deleting cache %s: %w", n, err))

			continue
		}

		log.Printf("Shell cache - deleted old cache %s", n)
	}

	return errors.Join(errs...)
}

// Latest returns the name of the newest cache with the given prefix, or ""
// when none is installed.
func Latest(ctx context.Context, store Store, prefix string) (string, error) {
	names, err := store.Names(ctx)
	if err != nil {
		return "", err
	}

	for _, n := range names {
		if strings.HasPrefix(n, prefix+"-") {
			return n, nil
		}
	}

	return "", nil
}
