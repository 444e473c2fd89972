// Package main はマイグレーション状態APIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sprinkle-migrator/config"
	"sprinkle-migrator/internal/handler"
	"sprinkle-migrator/internal/infra"
	"sprinkle-migrator/internal/registry"
	"sprinkle-migrator/internal/repository"
	"sprinkle-migrator/internal/sprinkle"
	"sprinkle-migrator/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(os.Stdout, cfg, infra.ParseLogLevel(cfg.LogLevel))

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("failed to get sql.DB", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// スプリンクル読み込み
	reg := registry.New()
	if err := sprinkle.Load(reg, cfg.Sprinkles, cfg.MigrationsDir); err != nil {
		slog.Error("failed to load sprinkles", "error", err)
		os.Exit(1)
	}

	// DI
	repo := repository.NewMigrationRepository(db, cfg.MigrationTable)
	migrator := usecase.NewMigrator(repo, reg, repository.NewSchemaRepository(db), db)
	h := handler.NewMigrationHandler(migrator, sqlDB)
	router := handler.NewRouter(h, cfg)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "sprinkles", reg.Sprinkles())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
