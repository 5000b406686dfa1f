package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/easyterm/easyterm/sim/grid"
)

func newRouteCmd() *cobra.Command {
	var barriers []int
	var display bool
	cmd := &cobra.Command{
		Use:   "route <start> <end>",
		Short: "Plan a route on the terminal grid and print it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("start cell %q: %w", args[0], err)
			}
			end, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("end cell %q: %w", args[1], err)
			}
			return printRoute(cmd.OutOrStdout(), grid.Cell(start), grid.Cell(end), barriers, display)
		},
	}
	cmd.Flags().IntSliceVar(&barriers, "barrier", nil, "Barred cells (repeatable or comma separated)")
	cmd.Flags().BoolVar(&display, "display", true, "Render the grid with the path and barriers")
	return cmd
}

// printRoute plans start to end around barriers and writes the path and its cost.
func printRoute(w io.Writer, start, end grid.Cell, barriers []int, display bool) error {
	r := grid.NewRouter()
	for _, b := range barriers {
		if err := r.SetBarrier(grid.Cell(b)); err != nil {
			return fmt.Errorf("barrier %d: %w", b, err)
		}
	}
	path, cost, err := r.Route(start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "path: %v\ncost: %d\n", path.Ints(), cost)
	if display {
		fmt.Fprint(w, grid.Display(path, r.Barriers()))
	}
	return nil
}
