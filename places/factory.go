// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"fmt"

	"github.com/jcodagnone/eaterymap/utils/httputils"
)

// Options selects and configures a provider.
type Options struct {
	// Name is GoogleProviderName or OverpassProviderName
	Name string

	// APIKey for providers that need one
	APIKey string

	// Endpoint overrides the provider URL
	Endpoint string

	// HTTP client configuration
	HTTP httputils.ClientOptions
}

// New builds the provider named in opts.
func New(opts Options) (Provider, error) {
	client := httputils.NewClient(&opts.HTTP)

	switch opts.Name {
	case GoogleProviderName:
		return NewGoogleProvider(opts.APIKey, opts.Endpoint, client), nil
	case OverpassProviderName, "":
		return NewOverpassProvider(opts.Endpoint, client), nil
	default:
		return nil, fmt.Errorf("unknown places provider %q", opts.Name)
	}
}
