package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"agriport/internal/app"
	"agriport/internal/models"
)

func newGridCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Build the sampling grid for the configured boundary",
		Long: "Build the sampling grid for the configured boundary and print a summary.\n" +
			"With the sqlite backend the grid is stored and reused by later runs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				points, err := a.Pipeline.Grid(ctx)
				if err != nil {
					return err
				}

				if output != "" {
					if err := writeGridGeoJSON(output, points); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "grid_key=%s points=%d\n", a.GridKey, len(points))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write grid points as GeoJSON to this file")
	return cmd
}

func gridFeatureCollection(points []models.GridPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, gp := range points {
		f := geojson.NewFeature(gp.GetCoords().Point())
		f.Properties["grid_point_id"] = gp.ID
		fc.Append(f)
	}
	return fc
}

func writeGridGeoJSON(path string, points []models.GridPoint) error {
	data, err := gridFeatureCollection(points).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write grid: %w", err)
	}
	return nil
}
