// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcodagnone/eaterymap/finder"
	"github.com/jcodagnone/eaterymap/shellcache"
	"github.com/spf13/cobra"
)

var serveOptions = struct {
	Host string
	Port int
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the map page and the search stream",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveOptions.Host
		}

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serveOptions.Port
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer repo.DB().Close()

		svc, err := newService(ctx, cfg, repo)
		if err != nil {
			return err
		}

		var cache *shellcache.Cache

		if cfg.Cache.Enabled {
			cacheStore := shellcache.NewDuckDBStore(repo.DB())
			if err := cacheStore.CreateSchema(); err != nil {
				return fmt.Errorf("creating cache schema: %w", err)
			}

			manifest := shellcache.Manifest(cfg.Cache.Manifest)

			name, err := shellcache.Install(ctx, cacheStore, shellcache.FSOrigin{FS: finder.Web()}, cfg.Cache.Prefix, manifest)
			if err != nil {
				return fmt.Errorf("installing shell cache: %w", err)
			}

			cache = shellcache.NewCache(cacheStore, manifest, name)
		}

		return finder.NewServer(svc, cache).Run(ctx, cfg.Addr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.Host, "host", "localhost", "Address to listen on")
	serveCmd.Flags().IntVar(&serveOptions.Port, "port", 8080, "Port to listen on")
}
