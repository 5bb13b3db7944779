package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/noah-isme/exam-timetable-api/pkg/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	var (
		dir  string
		down bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL migrations in order (or roll them back with --down)",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := migrationFiles(dir, down)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no migrations found in %s", dir)
			}
			db, err := database.NewPostgres(a.cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()
			return applyMigrations(cmd.Context(), db, files, func(name string) {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "migrations", "directory holding NNN_name.up.sql / .down.sql files")
	cmd.Flags().BoolVar(&down, "down", false, "run the .down.sql files in reverse order")
	return cmd
}

// migrationFiles lists up files ascending, or down files descending.
func migrationFiles(dir string, down bool) ([]string, error) {
	suffix := ".up.sql"
	if down {
		suffix = ".down.sql"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	if down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// applyMigrations runs each file in its own transaction.
func applyMigrations(ctx context.Context, db *sqlx.DB, files []string, applied func(string)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, file := range files {
		body, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", filepath.Base(file), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", file, err)
		}
		applied(filepath.Base(file))
	}
	return nil
}
