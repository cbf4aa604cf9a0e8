// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jcodagnone/eaterymap/finder"
	"github.com/jcodagnone/eaterymap/render"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/status"
	"github.com/jcodagnone/eaterymap/store"
	"github.com/jcodagnone/eaterymap/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var searchOptions = struct {
	Lat        float64
	Lng        float64
	Denied     bool
	Keyword    string
	Categories []string
	Radius     float64
	GeoJSON    string
	Record     bool
}{}

// barDisplay shows the status line as the description of a spinner that
// counts markers.
type barDisplay struct {
	bar *progressbar.ProgressBar
}

func (d *barDisplay) SetText(text string) {
	d.bar.Describe(text)
}

func (d *barDisplay) SetVisible(bool) {}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Searches the eateries around a location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var repo store.Repository

		if searchOptions.Record {
			if repo, err = openRepository(cfg); err != nil {
				return err
			}
			defer repo.DB().Close()
		}

		svc, err := newService(ctx, cfg, repo)
		if err != nil {
			return err
		}

		in := &finder.SearchInput{
			Client:     "cli",
			Denied:     searchOptions.Denied,
			Keyword:    searchOptions.Keyword,
			Categories: textutils.NormalizeCategories(searchOptions.Categories),
			Radius:     searchOptions.Radius,
		}

		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
			in.Position = &spatial.Point{Lat: searchOptions.Lat, Lng: searchOptions.Lng}
		}

		var (
			display status.Display = status.LogDisplay{}
			onMap   func(render.Event)
			bar     *progressbar.ProgressBar
		)

		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(-1,
				progressbar.OptionSetDescription(status.MsgLocating),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			display = &barDisplay{bar: bar}
			onMap = func(e render.Event) {
				if e.Kind == render.EventMarker {
					if err := bar.Add(1); err != nil {
						log.Printf("updating progress bar: %v", err)
					}
				}
			}
		}

		res, err := svc.Search(ctx, in, display, onMap)

		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil {
			return err
		}

		res.Reporter.Close()

		printMarkers(res.Map.Markers())

		log.Printf(
			"Total search metrics - %d unique places from %d results across %d pages (%d duplicates)",
			res.Summary.Unique,
			res.Summary.Totals().Results,
			res.Summary.Totals().Pages,
			res.Summary.Totals().Duplicates,
		)

		if err := res.Summary.Err(); err != nil {
			log.Printf("⚠️ Some categories failed: %v", err)
		}

		if searchOptions.GeoJSON != "" {
			return writeGeoJSONFile(searchOptions.GeoJSON, res.Map.Markers())
		}

		return nil
	},
}

func printMarkers(markers []*render.Marker) {
	a, b, c := strings.Repeat("─", 36), strings.Repeat("─", 14), strings.Repeat("─", 8)
	fmt.Printf("╭─%-36s─┬─%-14s─┬─%-8s─╮\n", a, b, c)
	fmt.Printf("│ %-36s │ %-14s │ %-8s │\n", "Name", "Category", "Rating")
	fmt.Printf("├─%-36s─┼─%-14s─┼─%-8s─┤\n", a, b, c)

	for _, m := range markers {
		fmt.Printf("│ %-36s │ %-14s │ %-8s │\n", truncate(m.Title, 36), truncate(m.Category, 14), truncate(m.Popup.Rating, 8))
	}

	fmt.Printf("╰─%-36s─┴─%-14s─┴─%-8s─╯\n", a, b, c)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func writeGeoJSONFile(path string, markers []*render.Marker) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := render.WriteGeoJSON(f, markers); err != nil {
		f.Close()

		return fmt.Errorf("writing %s: %w", path, err)
	}

	log.Printf("🗺️  Wrote %d places to %s", len(markers), path)

	return f.Close()
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Float64Var(&searchOptions.Lat, "lat", 0, "Latitude of the center")
	searchCmd.Flags().Float64Var(&searchOptions.Lng, "lng", 0, "Longitude of the center")
	searchCmd.Flags().BoolVar(&searchOptions.Denied, "denied", false, "Behave as if the location was denied and use the fallback")
	searchCmd.Flags().StringVar(&searchOptions.Keyword, "keyword", "", "Free text filter on the place name")
	searchCmd.Flags().StringSliceVar(&searchOptions.Categories, "category", nil, "Categories to search, repeatable. Defaults to the configured ones")
	searchCmd.Flags().Float64Var(&searchOptions.Radius, "radius", 0, "Search radius in meters")
	searchCmd.Flags().StringVar(&searchOptions.GeoJSON, "geojson", "", "Write the places found as GeoJSON to this file")
	searchCmd.Flags().BoolVar(&searchOptions.Record, "record", false, "Record the session in the history database")
}
