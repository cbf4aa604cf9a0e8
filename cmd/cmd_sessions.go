// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jcodagnone/eaterymap/finder"
	"github.com/jcodagnone/eaterymap/render"
	"github.com/spf13/cobra"
)

var sessionsOptions = struct {
	Limit  int
	Output string
}{}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browses the search history",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the most recent sessions",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer repo.DB().Close()

		sessions, err := repo.ListSessions(context.Background(), sessionsOptions.Limit)
		if err != nil {
			return err
		}

		a, b, c, d := strings.Repeat("─", 36), strings.Repeat("─", 19), strings.Repeat("─", 22), strings.Repeat("─", 5)
		fmt.Printf("╭─%s─┬─%s─┬─%s─┬─%s─╮\n", a, b, c, d)
		fmt.Printf("│ %-36s │ %-19s │ %-22s │ %5s │\n", "Id", "Started", "Center", "Found")
		fmt.Printf("├─%s─┼─%s─┼─%s─┼─%s─┤\n", a, b, c, d)

		for _, s := range sessions {
			center := fmt.Sprintf("%.4f, %.4f", s.Center.Lat, s.Center.Lng)
			if s.Defaulted {
				center += " *"
			}

			fmt.Printf("│ %-36s │ %-19s │ %-22s │ %5d │\n", s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), center, s.Found)
		}

		fmt.Printf("╰─%s─┴─%s─┴─%s─┴─%s─╯\n", a, b, c, d)

		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Exports the places of a session as GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer repo.DB().Close()

		ctx := context.Background()

		if _, err := repo.GetSession(ctx, args[0]); err != nil {
			return err
		}

		markers, err := finder.SessionMarkers(ctx, repo, args[0])
		if err != nil {
			return err
		}

		if sessionsOptions.Output == "" || sessionsOptions.Output == "-" {
			return render.WriteGeoJSON(os.Stdout, markers)
		}

		return writeGeoJSONFile(sessionsOptions.Output, markers)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsListCmd.Flags().IntVar(&sessionsOptions.Limit, "limit", 20, "Number of sessions to list")
	sessionsExportCmd.Flags().StringVarP(&sessionsOptions.Output, "output", "o", "-", "Output file, - for stdout")
}
