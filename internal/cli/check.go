package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/exam-timetable-api/internal/timetable"
)

func newCheckCommand(a *app) *cobra.Command {
	var (
		inputs planInputs
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report conflicts and totals for a placement plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := inputs.load(a)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			snap := loaded.snapshot

			overview := timetable.Summarize(snap.Grid, snap.Catalog, snap.Settings.StudentsPerRoom)
			fmt.Fprintf(out, "catalog: %d courses, %d enrollment rows (%d skipped)\n", snap.Catalog.Len(), loaded.rows, loaded.skipped)
			fmt.Fprintf(out, "placed: %d exams over %d week(s)\n", len(snap.Grid.Cells()), len(snap.Grid.Weeks()))
			fmt.Fprintf(out, "totals: %d students, %d rooms, %d invigilators\n",
				overview.TotalStudents, overview.TotalRooms, overview.TotalInvigilators)

			for _, problem := range loaded.problems {
				fmt.Fprintf(out, "plan: %s\n", problem.Error())
			}
			for _, d := range loaded.dropped {
				fmt.Fprintf(out, "skipped: %s (week %d %s %s)\n", d.CourseID, d.Week, d.Day, d.SlotID)
			}

			report := snap.Conflicts()
			if len(report.Overall) == 0 {
				fmt.Fprintln(out, "no conflicts")
				return nil
			}
			fmt.Fprintf(out, "%d conflict(s):\n", len(report.Overall))
			for _, msg := range report.Overall {
				fmt.Fprintf(out, "  - %s\n", msg)
			}
			if strict {
				return fmt.Errorf("%d conflict(s) found", len(report.Overall))
			}
			return nil
		},
	}
	inputs.bind(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any conflict is found")
	return cmd
}
