// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package store keeps the history of search sessions and the places they
// rendered in DuckDB.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
)

// Resolutions of the h3 cells stored with each place.
const (
	CoarseRes = 7
	FineRes   = 9
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("store: session not found")

// Session is a stored search session.
type Session struct {
	ID          string        `json:"id"`
	Client      string        `json:"client,omitempty"`
	Center      spatial.Point `json:"center"`
	Radius      float64       `json:"radius"`
	Categories  []string      `json:"categories"`
	Keyword     string        `json:"keyword,omitempty"`
	Provider    string        `json:"provider"`
	Defaulted   bool          `json:"defaulted"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Found       int           `json:"found"`
	Error       string        `json:"error,omitempty"`
}

// CellCount is the number of places of a session inside an h3 cell.
type CellCount struct {
	Cell  int64 `json:"cell"`
	Count int   `json:"count"`
}

// Repository persists sessions and their places.
type Repository interface {
	// CreateSchema creates the sessions and places tables
	CreateSchema() error

	// SaveSession records a session that just started
	SaveSession(ctx context.Context, s *Session) error

	// CompleteSession records the outcome of a session
	CompleteSession(ctx context.Context, id string, found int, failure error) error

	// SavePlace records a place rendered by a session
	SavePlace(ctx context.Context, sessionID string, p *places.Place) error

	// GetSession returns a session by id
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns the most recent sessions first
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// ListPlaces returns the places of a session in render order
	ListPlaces(ctx context.Context, sessionID string) ([]*places.Place, error)

	// CellCounts groups the places of a session by h3 cell
	CellCounts(ctx context.Context, sessionID string, res int) ([]*CellCount, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository returns a repository on db.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR PRIMARY KEY,
			client VARCHAR NOT NULL,
			center STRUCT(x DOUBLE, y DOUBLE) NOT NULL,
			radius DOUBLE NOT NULL,
			categories VARCHAR NOT NULL,
			keyword VARCHAR NOT NULL,
			provider VARCHAR NOT NULL,
			defaulted BOOLEAN NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			found INTEGER NOT NULL DEFAULT 0,
			error VARCHAR
		);

		CREATE SEQUENCE IF NOT EXISTS places_seq START 1;

		CREATE TABLE IF NOT EXISTS places (
			seq INTEGER PRIMARY KEY DEFAULT nextval('places_seq'),
			session_id VARCHAR NOT NULL,
			place_id VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			category VARCHAR NOT NULL,
			cuisine VARCHAR NOT NULL,
			secondary VARCHAR NOT NULL,
			point STRUCT(x DOUBLE, y DOUBLE) NOT NULL,
			rating DOUBLE,
			rating_count INTEGER,
			provider VARCHAR NOT NULL,
			h3_res7 UBIGINT NOT NULL,
			h3_res9 UBIGINT NOT NULL,
			UNIQUE(session_id, place_id)
		);
	`)

	return err
}

func (r *sqlRepository) SaveSession(ctx context.Context, s *Session) error {
	if err := s.Center.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, client, center, radius, categories, keyword, provider, defaulted, started_at)
		VALUES (?, ?, struct_pack(x := ?, y := ?), ?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.Client,
		s.Center.Lng,
		s.Center.Lat,
		s.Radius,
		strings.Join(s.Categories, ","),
		s.Keyword,
		s.Provider,
		s.Defaulted,
		s.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", s.ID, err)
	}

	return nil
}

func (r *sqlRepository) CompleteSession(ctx context.Context, id string, found int, failure error) error {
	var msg any
	if failure != nil {
		msg = failure.Error()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET completed_at = ?, found = ?, error = ? WHERE id = ?
	`, time.Now().UTC(), found, msg, id)
	if err != nil {
		return fmt.Errorf("completing session %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return nil
}

func (r *sqlRepository) SavePlace(ctx context.Context, sessionID string, p *places.Place) error {
	if !p.HasPosition() {
		return fmt.Errorf("place %s has no position", p.ID)
	}

	coarse, err := p.Position.Cell(CoarseRes)
	if err != nil {
		return err
	}

	fine, err := p.Position.Cell(FineRes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO places (session_id, place_id, name, category, cuisine, secondary, point, rating, rating_count, provider, h3_res7, h3_res9)
		VALUES (?, ?, ?, ?, ?, ?, struct_pack(x := ?, y := ?), ?, ?, ?, ?, ?)
	`,
		sessionID,
		p.ID,
		p.Name,
		p.Category,
		p.Cuisine,
		p.Secondary,
		p.Position.Lng,
		p.Position.Lat,
		nullable(p.Rating),
		nullable(p.RatingCount),
		p.Provider,
		uint64(coarse),
		uint64(fine),
	)
	if err != nil {
		return fmt.Errorf("inserting place %s: %w", p.ID, err)
	}

	return nil
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}

	return *v
}

const sessionColumns = `id, client, center, radius, categories, keyword, provider, defaulted, started_at, completed_at, found, error`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s          Session
		categories string
		completed  sql.NullTime
		failure    sql.NullString
	)

	err := row.Scan(
		&s.ID,
		&s.Client,
		&s.Center,
		&s.Radius,
		&categories,
		&s.Keyword,
		&s.Provider,
		&s.Defaulted,
		&s.StartedAt,
		&completed,
		&s.Found,
		&failure,
	)
	if err != nil {
		return nil, err
	}

	if categories != "" {
		s.Categories = strings.Split(categories, ",")
	}

	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}

	s.Error = failure.String

	return &s, nil
}

func (r *sqlRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return s, err
}

func (r *sqlRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session

	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (r *sqlRepository) ListPlaces(ctx context.Context, sessionID string) ([]*places.Place, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT place_id, name, category, cuisine, secondary, point, rating, rating_count, provider
		FROM places
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*places.Place

	for rows.Next() {
		var (
			p     places.Place
			pos   spatial.Point
			rate  sql.NullFloat64
			count sql.NullInt64
		)

		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Cuisine, &p.Secondary, &pos, &rate, &count, &p.Provider); err != nil {
			return nil, err
		}

		p.Position = &pos

		if rate.Valid {
			v := rate.Float64
			p.Rating = &v
		}

		if count.Valid {
			v := int(count.Int64)
			p.RatingCount = &v
		}

		result = append(result, &p)
	}

	return result, rows.Err()
}

func (r *sqlRepository) CellCounts(ctx context.Context, sessionID string, res int) ([]*CellCount, error) {
	var column string

	switch res {
	case CoarseRes:
		column = "h3_res7"
	case FineRes:
		column = "h3_res9"
	default:
		return nil, fmt.Errorf("store: unsupported h3 resolution %d (want %d or %d)", res, CoarseRes, FineRes)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %[1]s, count(*) AS n
		FROM places
		WHERE session_id = ?
		GROUP BY %[1]s
		ORDER BY n DESC, %[1]s
	`, column), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []*CellCount

	for rows.Next() {
		var (
			cell uint64
			c    CellCount
		)

		if err := rows.Scan(&cell, &c.Count); err != nil {
			return nil, err
		}

		c.Cell = int64(cell)
		counts = append(counts, &c)
	}

	return counts, rows.Err()
}
