// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// APIKeyEnv is the environment variable holding the Google Places key.
const APIKeyEnv = "GOOGLE_MAPS_API_KEY"

// DefaultKeyDisplayName is the display name of the API key looked up through ADC.
const DefaultKeyDisplayName = "EateryMap Places Key"

// KeyOptions controls how ResolveAPIKey looks for a key.
type KeyOptions struct {
	// Explicit key from configuration, wins over everything else.
	Explicit string

	// ProjectID used for the ADC lookup when credentials carry none.
	ProjectID string

	// DisplayName of the key resource. Defaults to DefaultKeyDisplayName.
	DisplayName string

	// DisableADC skips the Application Default Credentials lookup.
	DisableADC bool
}

// ResolveAPIKey returns the Google Places API key: explicit configuration,
// then the GOOGLE_MAPS_API_KEY variable, then Application Default Credentials.
func ResolveAPIKey(ctx context.Context, opts KeyOptions) (string, error) {
	if opts.Explicit != "" {
		return opts.Explicit, nil
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}

	if opts.DisableADC {
		return "", fmt.Errorf("%s is not set", APIKeyEnv)
	}

	log.Printf("%s is not set. Attempting to retrieve via ADC...", APIKeyEnv)

	key, err := apiKeyFromADC(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("retrieving API key via ADC: %w", err)
	}

	log.Println("✅ Successfully retrieved Google Places API Key via ADC")

	return key, nil
}

func apiKeyFromADC(ctx context.Context, opts KeyOptions) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		projectID = opts.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project id in credentials or configuration")
	}

	displayName := opts.DisplayName
	if displayName == "" {
		displayName = DefaultKeyDisplayName
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != displayName {
			continue
		}

		// ListKeys redacts KeyString; it has to be fetched on its own.
		log.Printf("Found key resource '%s', retrieving secret...", key.Name)

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' found but KeyString is empty", displayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", displayName, projectID)
}
