package main

import (
	"context"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/internal/middleware"
	"sprinkle-migrator/internal/usecase"
)

// migrateCmd は migrate コマンドとそのサブコマンドを生成する。
// サブコマンド無しで実行した場合は migrate up と同じ。
func migrateCmd() *cobra.Command {
	cmd := upCmd("migrate")
	cmd.Short = "Apply pending migrations and manage the migration ledger"

	cmd.AddCommand(upCmd("up"))
	cmd.AddCommand(rollbackCmd("rollback"))
	cmd.AddCommand(resetCmd("reset"))
	cmd.AddCommand(resetHardCmd("reset-hard"))
	cmd.AddCommand(refreshCmd("refresh"))
	cmd.AddCommand(statusCmd("status"))
	cmd.AddCommand(cleanCmd("clean"))
	return cmd
}

// colonAliases は migrate:rollback 形式の別名コマンドを生成する。
func colonAliases() []*cobra.Command {
	aliases := []*cobra.Command{
		rollbackCmd("migrate:rollback"),
		resetCmd("migrate:reset"),
		resetHardCmd("migrate:reset:hard"),
		refreshCmd("migrate:refresh"),
		statusCmd("migrate:status"),
		cleanCmd("migrate:clean"),
	}
	for _, cmd := range aliases {
		cmd.Hidden = true
	}
	return aliases
}

// audit はスキーマや台帳を変更する操作の監査ログを出力する。
func audit(ctx context.Context, operation string, ids []domain.MigrationID, pretend bool, err error) {
	migrations := make([]string, len(ids))
	for i, id := range ids {
		migrations[i] = id.String()
	}
	middleware.WriteAuditLog(ctx, middleware.AuditLog{
		Operation:  operation,
		Migrations: migrations,
		Pretend:    pretend,
		Result:     resultOf(err),
	})
}

func pretendIDs(results []usecase.PretendResult) []domain.MigrationID {
	ids := make([]domain.MigrationID, len(results))
	for i, r := range results {
		ids[i] = r.Migration
	}
	return ids
}

func upCmd(use string) *cobra.Command {
	var pretend, step bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			if pretend {
				results, err := migrator.PretendToMigrate(ctx)
				audit(ctx, "MIGRATE", pretendIDs(results), true, err)
				if err != nil {
					return err
				}
				return printPretend(cmd.OutOrStdout(), output, results)
			}

			applied, err := migrator.Migrate(ctx, usecase.MigrateOptions{Step: step})
			audit(ctx, "MIGRATE", applied, false, err)
			return report(cmd.OutOrStdout(), "migrate", "Applied", applied, err)
		},
	}
	cmd.Flags().BoolVar(&pretend, "pretend", false, "Print the SQL that would run without executing it")
	cmd.Flags().BoolVar(&step, "step", false, "Record each migration in its own batch")
	return cmd
}

func rollbackCmd(use string) *cobra.Command {
	var (
		pretend   bool
		steps     int
		migration string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: "Rollback the last batches of migrations, or a single migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			if pretend {
				var results []usecase.PretendResult
				if migration != "" {
					results, err = migrator.PretendToRollbackMigration(ctx, domain.NewMigrationID(migration))
				} else {
					results, err = migrator.PretendToRollback(ctx, steps)
				}
				audit(ctx, "ROLLBACK", pretendIDs(results), true, err)
				if err != nil {
					return err
				}
				return printPretend(cmd.OutOrStdout(), output, results)
			}

			var rolledBack []domain.MigrationID
			if migration != "" {
				rolledBack, err = migrator.RollbackMigration(ctx, domain.NewMigrationID(migration))
			} else {
				rolledBack, err = migrator.Rollback(ctx, steps)
			}
			audit(ctx, "ROLLBACK", rolledBack, false, err)
			return report(cmd.OutOrStdout(), "rollback", "Rolled back", rolledBack, err)
		},
	}
	cmd.Flags().BoolVar(&pretend, "pretend", false, "Print the SQL that would run without executing it")
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of batches to rollback")
	cmd.Flags().StringVar(&migration, "migration", "", "Rollback only this migration")
	return cmd
}

func resetCmd(use string) *cobra.Command {
	var pretend bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Rollback every installed migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			if pretend {
				results, err := migrator.PretendToReset(ctx)
				audit(ctx, "RESET", pretendIDs(results), true, err)
				if err != nil {
					return err
				}
				return printPretend(cmd.OutOrStdout(), output, results)
			}

			rolledBack, err := migrator.Reset(ctx)
			audit(ctx, "RESET", rolledBack, false, err)
			return report(cmd.OutOrStdout(), "reset", "Rolled back", rolledBack, err)
		},
	}
	cmd.Flags().BoolVar(&pretend, "pretend", false, "Print the SQL that would run without executing it")
	return cmd
}

func resetHardCmd(use string) *cobra.Command {
	var pretend, force bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Drop every table in the database, including the ledger",
		Long:  "Drop every table in the database, including the ledger. Migrations' down steps are not run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			if pretend {
				tables, err := migrator.PretendToResetHard(ctx)
				if err != nil {
					return err
				}
				return printTables(cmd.OutOrStdout(), output, "Would drop", tables)
			}

			if !force {
				tables, err := migrator.PretendToResetHard(ctx)
				if err != nil {
					return err
				}
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Drop all %d table(s)? This cannot be undone.", len(tables)),
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return fmt.Errorf("confirmation failed (use --force in non-interactive sessions): %w", err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			tables, err := migrator.ResetHard(ctx)
			middleware.WriteAuditLog(ctx, middleware.AuditLog{
				Operation:  "RESET_HARD",
				Migrations: tables,
				Result:     resultOf(err),
			})
			if err != nil {
				return err
			}
			return printTables(cmd.OutOrStdout(), output, "Dropped", tables)
		},
	}
	cmd.Flags().BoolVar(&pretend, "pretend", false, "List the tables that would be dropped")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}

func refreshCmd(use string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   use,
		Short: "Rollback the last batches and migrate again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			rolledBack, applied, err := migrator.Refresh(ctx, steps)
			audit(ctx, "ROLLBACK", rolledBack, false, err)
			if rolledBack != nil || err == nil {
				audit(ctx, "MIGRATE", applied, false, err)
			}
			if printErr := printIDs(cmd.OutOrStdout(), output, "rollback", "Rolled back", rolledBack); printErr != nil {
				return printErr
			}
			return report(cmd.OutOrStdout(), "migrate", "Applied", applied, err)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of batches to refresh (0 refreshes everything)")
	return cmd
}

func statusCmd(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Show installed, pending and stale migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			statuses, err := migrator.GetStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), output, statuses)
		},
	}
}

func cleanCmd(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Remove stale migrations from the ledger without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, err := newMigrator()
			if err != nil {
				return err
			}

			removed, err := migrator.Clean(ctx)
			audit(ctx, "CLEAN", removed, false, err)
			return report(cmd.OutOrStdout(), "clean", "Removed", removed, err)
		},
	}
}

// report は処理済みの識別子を出力して操作のエラーを返す。失敗時も途中までの結果は出力する。
func report(w io.Writer, operation, label string, ids []domain.MigrationID, err error) error {
	if err == nil || len(ids) > 0 {
		if printErr := printIDs(w, output, operation, label, ids); printErr != nil {
			return printErr
		}
	}
	return err
}

func resultOf(err error) string {
	if err != nil {
		return "FAILED"
	}
	return "SUCCESS"
}
