package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
)

func newPointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "points <score>",
		Short: "Print the letter grade and grade point of a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("score %q is not a number", args[0])
			}
			letter, point := academic.PointsFor(score)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", letter, point)
			return nil
		},
	}
}
