package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/service"
)

func newRosterCommand(a *app) *cobra.Command {
	var (
		inputs planInputs
		format string
		weeks  []int
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Render roster files for a placement plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := inputs.load(a)
			if err != nil {
				return err
			}
			exporter := service.NewExportService(nil, nil, nil, service.ExportConfig{}, a.logger, nil, nil)
			file, exported, err := exporter.Build(loaded.snapshot, models.ExportFormat(format), weeks)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			target := filepath.Join(outDir, file.Name)
			if err := os.WriteFile(target, file.Body, 0o644); err != nil {
				return fmt.Errorf("write roster: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (weeks %v)\n", target, exported)
			return nil
		},
	}
	inputs.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(models.ExportFormatCSV), "csv or pdf")
	cmd.Flags().IntSliceVarP(&weeks, "weeks", "w", nil, "weeks to export (default: every week with placements)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}
