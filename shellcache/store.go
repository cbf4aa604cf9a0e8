// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package shellcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DuckDBStore keeps caches in the shell_assets table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore returns a store backed by db. Call CreateSchema first.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateSchema creates the shell_assets table.
func (s *DuckDBStore) CreateSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS shell_assets (
			cache_name VARCHAR NOT NULL,
			path VARCHAR NOT NULL,
			content_type VARCHAR NOT NULL,
			body BLOB NOT NULL,
			stored_at TIMESTAMP NOT NULL
		);
	`)

	return err
}

// Put implements Store.
func (s *DuckDBStore) Put(ctx context.Context, name string, assets []*Asset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = errors.Join(err, rErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM shell_assets WHERE cache_name = ?`, name); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shell_assets (cache_name, path, content_type, body, stored_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()

	for _, a := range assets {
		if _, err = stmt.ExecContext(ctx, name, a.Path, a.ContentType, a.Body, now); err != nil {
			return fmt.Errorf("inserting %s: %w", a.Path, err)
		}

		a.StoredAt = now
	}

	return tx.Commit()
}

// Get implements Store.
func (s *DuckDBStore) Get(ctx context.Context, name, path string) (*Asset, error) {
	a := &Asset{Path: path}

	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, body, stored_at
		FROM shell_assets
		WHERE cache_name = ? AND path = ?
	`, name, path).Scan(&a.ContentType, &a.Body, &a.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}

	if err != nil {
		return nil, err
	}

	return a, nil
}

// Names implements Store.
func (s *DuckDBStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_name
		FROM shell_assets
		GROUP BY cache_name
		ORDER BY max(stored_at) DESC, cache_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}

		names = append(names, n)
	}

	return names, rows.Err()
}

// Delete implements Store.
func (s *DuckDBStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shell_assets WHERE cache_name = ?`, name)

	return err
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]*Asset
	order  []string // oldest first
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{caches: make(map[string]map[string]*Asset)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, name string, assets []*Asset) error {
	c := make(map[string]*Asset, len(assets))
	now := time.Now().UTC()

	for _, a := range assets {
		cp := *a
		cp.StoredAt = now
		c[a.Path] = &cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		s.order = append(s.order, name)
	}

	s.caches[name] = c

	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, name, path string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.caches[name][path]
	if !ok {
		return nil, ErrNotCached
	}

	return a, nil
}

// Names implements Store.
func (s *MemoryStore) Names(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := append([]string(nil), s.order...)
	slices.Reverse(names)

	return names, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.caches, name)

	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return nil
}
