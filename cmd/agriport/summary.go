package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"agriport/internal/export"
)

type portSummary struct {
	points   int
	cost     float64
	distance float64
}

func newSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <export.csv>",
		Short: "Summarize a CSV export per port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open export: %w", err)
			}
			defer f.Close()

			rows, err := export.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			byPort := make(map[int64]*portSummary)
			unreachable := 0
			for _, row := range rows {
				if !row.Reachable || row.OptimalPortID == nil {
					unreachable++
					continue
				}
				s, ok := byPort[*row.OptimalPortID]
				if !ok {
					s = &portSummary{}
					byPort[*row.OptimalPortID] = s
				}
				s.points++
				s.cost += row.TotalCost.Float
				s.distance += row.DistanceKm.Float
			}

			ids := make([]int64, 0, len(byPort))
			for id := range byPort {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			w := cmd.OutOrStdout()
			for _, id := range ids {
				s := byPort[id]
				fmt.Fprintf(w, "port_id=%d points=%d mean_cost=%.2f mean_distance_km=%.2f\n",
					id, s.points, s.cost/float64(s.points), s.distance/float64(s.points))
			}
			fmt.Fprintf(w, "unreachable=%d\n", unreachable)
			return nil
		},
	}
}
