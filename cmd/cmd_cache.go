// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcodagnone/eaterymap/finder"
	"github.com/jcodagnone/eaterymap/shellcache"
	"github.com/jcodagnone/eaterymap/utils/httputils"
	"github.com/spf13/cobra"
)

var cacheOptions = struct {
	Origin string
}{}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the offline copy of the page shell",
}

func openCacheStore() (*shellcache.DuckDBStore, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}

	s := shellcache.NewDuckDBStore(db)
	if err := s.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return s, db.Close, nil
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetches every shell asset and stores them as a new cache",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, closeDB, err := openCacheStore()
		if err != nil {
			return err
		}
		defer closeDB()

		var origin shellcache.Origin = shellcache.FSOrigin{FS: finder.Web()}
		if cacheOptions.Origin != "" {
			origin = &shellcache.HTTPOrigin{
				BaseURL: cacheOptions.Origin,
				Client:  httputils.NewClient(&httputils.ClientOptions{UserAgent: userAgent()}),
			}
		}

		name, err := shellcache.Install(context.Background(), s, origin, cfg.Cache.Prefix, shellcache.Manifest(cfg.Cache.Manifest))
		if err != nil {
			return err
		}

		fmt.Println(name)

		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Lists the installed caches, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, closeDB, err := openCacheStore()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := context.Background()

		names, err := s.Names(ctx)
		if err != nil {
			return err
		}

		if len(names) == 0 {
			fmt.Println("No shell cache installed")

			return nil
		}

		for i, n := range names {
			marker := " "
			if i == 0 && strings.HasPrefix(n, cfg.Cache.Prefix+"-") {
				marker = "*"
			}

			fmt.Printf("%s %s\n", marker, n)

			for _, p := range cfg.Cache.Manifest {
				a, err := s.Get(ctx, n, p)
				if err != nil {
					fmt.Printf("    %-12s missing\n", p)

					continue
				}

				fmt.Printf("    %-12s %8d bytes  %s\n", p, len(a.Body), a.ContentType)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInstallCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheInstallCmd.Flags().StringVar(&cacheOptions.Origin, "origin", "", "Fetch the assets from a running server instead of the embedded copy")
}
