// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package shellcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/jcodagnone/eaterymap/utils/htmlutils"
)

// HTTPOrigin fetches assets from a running server.
type HTTPOrigin struct {
	BaseURL string
	Client  *http.Client
}

// Fetch implements Origin.
func (o *HTTPOrigin) Fetch(ctx context.Context, p string) (*Asset, error) {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(o.BaseURL, "/")+p, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Asset{Path: p, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// FSOrigin reads assets from a file system, typically the embedded web
// directory. "/" maps to "index.html".
type FSOrigin struct {
	FS fs.FS
}

// Fetch implements Origin.
func (o FSOrigin) Fetch(_ context.Context, p string) (*Asset, error) {
	name := strings.TrimPrefix(p, "/")
	if name == "" || strings.HasSuffix(name, "/") {
		name += "index.html"
	}

	body, err := fs.ReadFile(o.FS, name)
	if err != nil {
		return nil, err
	}

	return &Asset{Path: p, ContentType: ContentTypeFor("/" + name), Body: body}, nil
}

// checkReferences logs local assets referenced by cached HTML pages that the
// manifest does not cover; the page would need the network for them.
func checkReferences(assets []*Asset, manifest Manifest) []string {
	var missing []string

	for _, a := range assets {
		if !htmlutils.IsHTML(a.ContentType) {
			continue
		}

		n, err := htmlutils.AsNode(bytes.NewReader(a.Body))
		if err != nil {
			log.Printf("Shell cache - %s: %v", a.Path, err)

			continue
		}

		for _, ref := range htmlutils.LocalRefs(n) {
			if !manifest.Contains(ref) {
				log.Printf("Shell cache - %s references %s, which is not in the manifest", a.Path, ref)
				missing = append(missing, ref)
			}
		}
	}

	return missing
}
