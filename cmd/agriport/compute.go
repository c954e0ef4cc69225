package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agriport/internal/app"
	"agriport/internal/export"
	"agriport/internal/geo"
	"agriport/internal/pipeline"
)

type computeOptions struct {
	FuelPrice     float64
	Ports         []string
	RequestPath   string
	Format        string
	Output        string
	RegionsPath   string
	RegionsFormat string
	RefreshCache  bool
}

func newComputeCommand() *cobra.Command {
	opts := &computeOptions{}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Assign every grid point to its cheapest port and export the result",
		Example: "  agriport compute --fuel-price 1.45 --port 1:12.5:30 --port 2:10:34 --format csv -o result.csv\n" +
			"  agriport compute --request request.json --format json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			if opts.Format != "csv" && opts.Format != "json" {
				return fmt.Errorf("--format must be csv or json, got %q", opts.Format)
			}
			if opts.RegionsFormat != "geojson" && opts.RegionsFormat != "wkt" {
				return fmt.Errorf("--regions-format must be geojson or wkt, got %q", opts.RegionsFormat)
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if opts.RefreshCache {
					if err := a.ClearDistanceCache(ctx); err != nil {
						return err
					}
				}

				out, err := a.Pipeline.Run(ctx, req)
				if err != nil {
					return err
				}

				if err := opts.writeRows(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				if opts.RegionsPath != "" {
					if err := opts.writeRegions(out); err != nil {
						return err
					}
				}

				a.Logger.Info("[CLI] Compute finished",
					zap.String("run_id", out.RunID),
					zap.Int("assigned", len(out.Assignments)),
					zap.Int("unassigned", len(out.Unassigned)),
					zap.Int("boundaries", len(out.Boundaries)),
					zap.Int("regions", len(out.Regions)))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.FuelPrice, "fuel-price", 0, "fuel price per litre")
	f.StringArrayVar(&opts.Ports, "port", nil, "port charges as id:port_charge:sea_freight (repeatable)")
	f.StringVar(&opts.RequestPath, "request", "", "read the request from a JSON file instead of flags")
	f.StringVar(&opts.Format, "format", "csv", "export format: csv|json")
	f.StringVarP(&opts.Output, "output", "o", "", "write the export to this file instead of stdout")
	f.StringVar(&opts.RegionsPath, "regions", "", "write port regions to this file")
	f.StringVar(&opts.RegionsFormat, "regions-format", "geojson", "regions format: geojson|wkt")
	f.BoolVar(&opts.RefreshCache, "refresh-cache", false, "drop cached distances for this grid before computing")
	cmd.MarkFlagsMutuallyExclusive("request", "port")
	cmd.MarkFlagsMutuallyExclusive("request", "fuel-price")

	return cmd
}

func (o *computeOptions) request() (pipeline.Request, error) {
	if o.RequestPath != "" {
		data, err := os.ReadFile(o.RequestPath)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("failed to read request: %w", err)
		}
		var req pipeline.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return pipeline.Request{}, fmt.Errorf("failed to parse request %s: %w", o.RequestPath, err)
		}
		return req, nil
	}

	req := pipeline.Request{FuelPrice: o.FuelPrice}
	for _, arg := range o.Ports {
		pc, err := parsePortCharges(arg)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Ports = append(req.Ports, pc)
	}
	return req, nil
}

// parsePortCharges parses "id:port_charge:sea_freight"
func parsePortCharges(arg string) (pipeline.PortCharges, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return pipeline.PortCharges{}, fmt.Errorf("--port %q: expected id:port_charge:sea_freight", arg)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return pipeline.PortCharges{}, fmt.Errorf("--port %q: invalid id: %w", arg, err)
	}
	charge, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return pipeline.PortCharges{}, fmt.Errorf("--port %q: invalid port charge: %w", arg, err)
	}
	freight, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return pipeline.PortCharges{}, fmt.Errorf("--port %q: invalid sea freight: %w", arg, err)
	}

	return pipeline.PortCharges{ID: id, PortCharge: charge, SeaFreight: freight}, nil
}

func (o *computeOptions) writeRows(stdout io.Writer, out *pipeline.Output) error {
	w := stdout
	if o.Output != "" {
		f, err := os.Create(o.Output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if o.Format == "json" {
		return export.WriteJSON(w, out.Rows)
	}
	return export.WriteCSV(w, out.Rows)
}

func (o *computeOptions) writeRegions(out *pipeline.Output) error {
	var data []byte
	if o.RegionsFormat == "wkt" {
		var buf bytes.Buffer
		if err := geo.WriteRegionsWKT(&buf, out.Regions); err != nil {
			return fmt.Errorf("failed to encode regions: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = geo.RegionsFeatureCollection(out.Regions).MarshalJSON(); err != nil {
			return fmt.Errorf("failed to encode regions: %w", err)
		}
	}

	if err := os.WriteFile(o.RegionsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write regions: %w", err)
	}
	return nil
}
