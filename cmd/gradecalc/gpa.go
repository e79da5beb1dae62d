package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
)

func newGPACmd() *cobra.Command {
	var flags []string

	cmd := &cobra.Command{
		Use:   "gpa --course CODE:SCORE:UNIT ...",
		Short: "Grade one semester and print its GPA",
		Example: `  gradecalc gpa --course CSC101:72:3 --course MTH101:55:2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			courses := make([]academic.Course, 0, len(flags))
			for _, raw := range flags {
				c, err := parseCourse(raw)
				if err != nil {
					return err
				}
				courses = append(courses, c)
			}

			gpa, graded := academic.SemesterGPA(courses)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "GPA %s\n", gpa)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, c := range graded {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Code, c.Score.Raw(), c.Unit.Raw(), c.Grade)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVarP(&flags, "course", "c", nil, "course as CODE:SCORE:UNIT (repeatable)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// parseCourse reads CODE:SCORE:UNIT. Score and unit stay as text so the
// grading rules decide how to treat unparseable values.
func parseCourse(raw string) (academic.Course, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return academic.Course{}, fmt.Errorf("course %q must be CODE:SCORE:UNIT", raw)
	}
	return academic.Course{
		Code:  strings.TrimSpace(parts[0]),
		Score: academic.Text(strings.TrimSpace(parts[1])),
		Unit:  academic.Text(strings.TrimSpace(parts[2])),
	}, nil
}
