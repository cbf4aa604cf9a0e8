// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/eaterymap/config"
	"github.com/jcodagnone/eaterymap/finder"
	"github.com/jcodagnone/eaterymap/locate"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/store"
	"github.com/jcodagnone/eaterymap/utils/httputils"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "eaterymap",
	Short: "find places to eat around you",
	Long: `
eaterymap searches the places around a location for restaurants, cafés, bars
and other eateries, one category at a time, and draws them on a map. It runs
as a web server or from the terminal.
`,
	SilenceUsage: true,
}

var Version = "dev"

type rootOptions struct {
	ConfigPath    string
	Provider      string
	DbPath        string
	TraceHTTP     bool
	TraceHTTPBody bool
}

var options = &rootOptions{}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&options.Provider, "provider", "", "Places provider: overpass or google")
	rootCmd.PersistentFlags().StringVar(&options.DbPath, "db", "", "DuckDB file for the session history and the shell cache")
	rootCmd.PersistentFlags().BoolVar(&options.TraceHTTP, "trace-http", false, "Display HTTP requests-responses")
	rootCmd.PersistentFlags().BoolVar(&options.TraceHTTPBody, "trace-http-body", false, "Display HTTP requests-responses bodies")
}

func userAgent() string {
	return fmt.Sprintf("eaterymap/%s (+https://github.com/jcodagnone/eaterymap)", Version)
}

// loadConfig reads the configuration and applies the root flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	if options.Provider != "" {
		cfg.Provider.Name = options.Provider
	}

	if options.DbPath != "" {
		cfg.Storage.Path = options.DbPath
	}

	if options.TraceHTTP || options.TraceHTTPBody {
		cfg.Provider.Trace = true
	}

	if cfg.Provider.UserAgent == "" {
		cfg.Provider.UserAgent = userAgent()
	}

	return cfg, cfg.Validate()
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("duckdb", cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}

func openRepository(cfg *config.Config) (store.Repository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	repo := store.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return repo, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (places.Provider, error) {
	opts, err := cfg.ProviderOptions()
	if err != nil {
		return nil, err
	}

	opts.HTTP.TraceBody = options.TraceHTTPBody

	if opts.Name == places.GoogleProviderName {
		if opts.APIKey, err = places.ResolveAPIKey(ctx, cfg.KeyOptions()); err != nil {
			return nil, err
		}
	}

	return places.New(opts)
}

func newService(ctx context.Context, cfg *config.Config, repo store.Repository) (*finder.Service, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	hide, err := cfg.HideDelay()
	if err != nil {
		return nil, err
	}

	opts := finder.Options{
		Provider:   provider,
		Policy:     policy,
		Categories: cfg.Categories(),
		Radius:     cfg.Search.Radius,
		Fallback:   cfg.Fallback(),
		HideDelay:  hide,
		Repository: repo,
	}

	if cfg.Location.IPLookup {
		opts.IPLookup = &locate.IPLookup{
			Endpoint: cfg.Location.IPLookupURL,
			Client: httputils.NewClient(&httputils.ClientOptions{
				UserAgent: cfg.Provider.UserAgent,
				Timeout:   5 * time.Second,
			}),
		}
	}

	fmt.Printf("📍 Places: %s, categories %v, radius %.0fm\n", provider.Name(), opts.Categories, opts.Radius)

	return finder.NewService(opts)
}
