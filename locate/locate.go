// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package locate resolves the center of a search: the client position when
// one is available, the configured fallback coordinate otherwise.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jcodagnone/eaterymap/spatial"
)

var (
	// ErrGeolocationUnavailable is returned when no position can be obtained.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	// ErrGeolocationDenied is returned when the client refused to share its
	// position.
	ErrGeolocationDenied = errors.New("geolocation denied")
)

// DefaultFallback is the center used when the client cannot be located:
// Montevideo, Uruguay.
var DefaultFallback = spatial.Point{Lat: -34.9011, Lng: -56.1645}

// Provider obtains a position.
type Provider interface {
	Locate(ctx context.Context) (spatial.Point, error)
}

// Fixed is a position supplied by the client, typically forwarded from the
// browser geolocation API.
type Fixed spatial.Point

// Locate implements Provider.
func (f Fixed) Locate(context.Context) (spatial.Point, error) {
	p := spatial.Point(f)
	if err := p.Validate(); err != nil {
		return spatial.Point{}, fmt.Errorf("%w: %w", ErrGeolocationUnavailable, err)
	}

	return p, nil
}

// Denied is the answer of a client that refused to share its position.
type Denied struct{}

// Locate implements Provider.
func (Denied) Locate(context.Context) (spatial.Point, error) {
	return spatial.Point{}, ErrGeolocationDenied
}

// Unavailable is the answer of a client without geolocation support.
type Unavailable struct{}

// Locate implements Provider.
func (Unavailable) Locate(context.Context) (spatial.Point, error) {
	return spatial.Point{}, ErrGeolocationUnavailable
}

// Chain tries each provider in order; the first success wins.
type Chain []Provider

// Locate implements Provider. When every provider fails the errors are
// joined, so errors.Is still finds ErrGeolocationDenied.
func (c Chain) Locate(ctx context.Context) (spatial.Point, error) {
	if len(c) == 0 {
		return spatial.Point{}, ErrGeolocationUnavailable
	}

	var errs []error

	for _, p := range c {
		pt, err := p.Locate(ctx)
		if err == nil {
			return pt, nil
		}

		if ctx.Err() != nil {
			return spatial.Point{}, ctx.Err()
		}

		errs = append(errs, err)
	}

	return spatial.Point{}, errors.Join(errs...)
}

// Resolve locates with provider and falls back to fallback on any failure.
// The returned flag is true when the fallback was used; the center is then
// exactly the fallback.
func Resolve(ctx context.Context, provider Provider, fallback spatial.Point) (spatial.Point, bool, error) {
	if provider == nil {
		return fallback, true, ErrGeolocationUnavailable
	}

	p, err := provider.Locate(ctx)
	if err != nil {
		log.Printf("Locate - using fallback %s: %v", fallback, err)

		return fallback, true, err
	}

	return p, false, nil
}
