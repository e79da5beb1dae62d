package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "gradecalc",
		Short: "Grade and CGPA calculator on the 5-point scale",
		Long: `gradecalc computes grades, semester GPAs and cumulative GPAs.
The cgpa command implements the external calculator contract of the records API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newCGPACmd(), newGPACmd(), newPointsCmd())
	return root
}
