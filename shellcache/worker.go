// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package shellcache

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
)

// WorkerPath is where the page registers the service worker.
const WorkerPath = "/sw.js"

var workerTemplate = template.Must(template.New("sw.js").Parse(`const CACHE_NAME = {{.Name}};
const CACHE_PREFIX = {{.Prefix}};
const SHELL = {{.Manifest}};

self.addEventListener('install', (event) => {
  event.waitUntil(caches.open(CACHE_NAME).then((cache) => cache.addAll(SHELL)));
});

self.addEventListener('activate', (event) => {
  event.waitUntil(caches.keys().then((names) => Promise.all(
    names
      .filter((n) => n !== CACHE_NAME && n.startsWith(CACHE_PREFIX))
      .map((n) => caches.delete(n))
  )));
});

self.addEventListener('fetch', (event) => {
  if (event.request.method !== 'GET') {
    return;
  }
  event.respondWith(caches.match(event.request).then((hit) => hit || fetch(event.request)));
});
`))

// namePrefix strips the content hash from a name built by CacheName.
func namePrefix(name string) string {
	if i := strings.LastIndex(name, "-"); i >= 0 {
		return name[:i+1]
	}

	return name
}

// WriteWorker renders the browser service worker for the cache named name.
// It installs the manifest under the same content-hash name, deletes older
// caches of the same prefix and answers cache-first.
func WriteWorker(w io.Writer, name string, manifest Manifest) error {
	if name == "" {
		return ErrNotCached
	}

	quote := func(v any) (string, error) {
		b, err := json.Marshal(v)

		return string(b), err
	}

	var data struct{ Name, Prefix, Manifest string }

	var err error

	if data.Name, err = quote(name); err != nil {
		return err
	}

	if data.Prefix, err = quote(namePrefix(name)); err != nil {
		return err
	}

	if data.Manifest, err = quote([]string(manifest)); err != nil {
		return err
	}

	if err := workerTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering service worker: %w", err)
	}

	return nil
}
