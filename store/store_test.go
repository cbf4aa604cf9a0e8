// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func setupRepository(t *testing.T) Repository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func newSession(id string, started time.Time) *Session {
	return &Session{
		ID:         id,
		Client:     "browser-1",
		Center:     spatial.Point{Lat: -34.9011, Lng: -56.1645},
		Radius:     3000,
		Categories: []string{"restaurant", "cafe"},
		Provider:   "overpass",
		Defaulted:  true,
		StartedAt:  started,
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSession(ctx, newSession("s1", started)))

	s, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: -34.9011, Lng: -56.1645}, s.Center)
	assert.Equal(t, []string{"restaurant", "cafe"}, s.Categories)
	assert.True(t, s.Defaulted)
	assert.True(t, started.Equal(s.StartedAt))
	assert.Nil(t, s.CompletedAt)

	require.NoError(t, repo.CompleteSession(ctx, "s1", 12, errors.New("category cafe: quota")))

	s, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 12, s.Found)
	assert.Equal(t, "category cafe: quota", s.Error)
	require.NotNil(t, s.CompletedAt)

	_, err = repo.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, repo.CompleteSession(ctx, "nope", 0, nil), ErrSessionNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveSession(ctx, newSession(id, base.Add(time.Duration(i)*time.Minute))))
	}

	sessions, err := repo.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "c", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestPlaces(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	require.NoError(t, repo.SaveSession(ctx, newSession("s1", time.Now())))

	in := []*places.Place{
		{
			ID:          "ChIJ1",
			Name:        "La Pasiva",
			Category:    "restaurant",
			Secondary:   "Sarandí 600",
			Position:    &spatial.Point{Lat: -34.9068, Lng: -56.2002},
			Rating:      ptr(4.1),
			RatingCount: ptr(3200),
			Provider:    "google",
		},
		{
			ID:       "node/42",
			Name:     "Café Brasilero",
			Category: "cafe",
			Cuisine:  "coffee_shop",
			Position: &spatial.Point{Lat: -34.9071, Lng: -56.2040},
			Provider: "overpass",
		},
	}

	for _, p := range in {
		require.NoError(t, repo.SavePlace(ctx, "s1", p))
	}

	assert.Error(t, repo.SavePlace(ctx, "s1", in[0]), "duplicate place in a session")
	assert.Error(t, repo.SavePlace(ctx, "s1", &places.Place{ID: "x", Name: "no position"}))

	out, err := repo.ListPlaces(ctx, "s1")
	require.NoError(t, err)

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}

	empty, err := repo.ListPlaces(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCellCounts(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	near := []spatial.Point{
		{Lat: -34.90600, Lng: -56.20000},
		{Lat: -34.90600, Lng: -56.20000},
		{Lat: -34.90600, Lng: -56.20000},
	}
	far := spatial.Point{Lat: -34.8000, Lng: -56.0500}

	for i, p := range append(near, far) {
		require.NoError(t, repo.SavePlace(ctx, "s1", &places.Place{
			ID:       string(rune('a' + i)),
			Name:     "p",
			Position: &p,
			Provider: "overpass",
		}))
	}

	wantCell, err := near[0].Cell(FineRes)
	require.NoError(t, err)

	counts, err := repo.CellCounts(ctx, "s1", FineRes)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, &CellCount{Cell: wantCell, Count: 3}, counts[0])
	assert.Equal(t, 1, counts[1].Count)

	coarse, err := repo.CellCounts(ctx, "s1", CoarseRes)
	require.NoError(t, err)
	assert.NotEmpty(t, coarse)

	_, err = repo.CellCounts(ctx, "s1", 5)
	assert.Error(t, err)
}
