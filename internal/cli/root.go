// Package cli implements examctl, the operator command line for checking
// plans offline, rendering rosters, minting API tokens and applying
// migrations.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/pkg/config"
	"github.com/noah-isme/exam-timetable-api/pkg/logger"
)

// app carries state shared by subcommands once PersistentPreRunE has run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand assembles examctl with every subcommand attached.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "examctl",
		Short:         "Exam timetable operator tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg, a.logger = cfg, logr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.AddCommand(
		newCheckCommand(a),
		newRosterCommand(a),
		newTokenCommand(a),
		newMigrateCommand(a),
	)
	return root
}
