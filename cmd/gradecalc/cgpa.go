package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
)

// errBadHistory is returned when the history argument cannot be decoded.
// Nothing is printed on stdout and the process exits non-zero, so a caller
// never mistakes it for a real 0.00 CGPA.
var errBadHistory = errors.New("history cannot be decoded")

func newCGPACmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cgpa <matric> <base64-history>",
		Short: "Print the cumulative GPA of a base64 encoded history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			matric, encoded := args[0], args[1]
			cgpa, err := cumulative(matric, encoded)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cgpa)
			return nil
		},
	}
}

func cumulative(matric, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		slog.Warn("history is not base64", "matric", matric, "error", err)
		return "", fmt.Errorf("%w: not base64: %w", errBadHistory, err)
	}

	history, err := academic.DecodeHistory(string(raw))
	if err != nil {
		slog.Warn("history is not valid JSON", "matric", matric, "error", err)
		return "", fmt.Errorf("%w: %w", errBadHistory, err)
	}

	cgpa := academic.CGPA(history)
	slog.Debug("computed cgpa", "matric", matric, "semesters", len(history), "courses", history.CourseCount(), "cgpa", cgpa)
	return cgpa, nil
}
