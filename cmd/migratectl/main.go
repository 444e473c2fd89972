// Package main はマイグレーションCLIのエントリポイント。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"sprinkle-migrator/config"
	"sprinkle-migrator/internal/infra"
	"sprinkle-migrator/internal/registry"
	"sprinkle-migrator/internal/repository"
	"sprinkle-migrator/internal/sprinkle"
	"sprinkle-migrator/internal/usecase"
)

var (
	databaseURL string
	output      string
	table       string
)

var (
	cfg *config.Config
	tp  *sdktrace.TracerProvider
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "migratectl",
		Short:        "Dependency-aware database migrations for sprinkles",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .envファイルを読み込む（存在しない場合は無視）
			_ = godotenv.Load()

			cfg = config.Load()
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			if table != "" {
				cfg.MigrationTable = table
			}
			if output != "text" && output != "json" {
				return fmt.Errorf("--output must be text or json")
			}

			var err error
			tp, err = infra.InitTracer(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to init tracer: %w", err)
			}

			// コマンド出力と混ざらないようログは標準エラー出力へ
			infra.SetupLogger(os.Stderr, cfg, infra.ParseLogLevel(cfg.LogLevel))
			return nil
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database DSN (or set DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "Migration ledger table (or set MIGRATION_TABLE)")

	// サブコマンド登録
	rootCmd.AddCommand(migrateCmd())
	for _, alias := range colonAliases() {
		rootCmd.AddCommand(alias)
	}
	rootCmd.AddCommand(versionCmd())

	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)
	if tp != nil {
		if shutdownErr := tp.Shutdown(ctx); shutdownErr != nil {
			slog.Error("failed to shutdown tracer", "error", shutdownErr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "migratectl version %s\n", infra.Version)
		},
	}
}

// newMigrator は設定からMigratorを組み立てる。
func newMigrator() (*usecase.Migrator, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("--database-url is required (or set DATABASE_URL)")
	}

	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	reg := registry.New()
	if err := sprinkle.Load(reg, cfg.Sprinkles, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("failed to load sprinkles: %w", err)
	}

	repo := repository.NewMigrationRepository(db, cfg.MigrationTable)
	return usecase.NewMigrator(repo, reg, repository.NewSchemaRepository(db), db), nil
}
