// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"sprinkle-migrator/config"
)

// NewDB はgormによるデータベース接続を初期化する。
// "sqlite:" または "file:" で始まるDSNはSQLite、"postgres://" はPostgreSQL、それ以外はMySQLとして開く。
func NewDB(dsn string, cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: NewGormLogger(slog.Default(), GormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	// OTEL有効時のみDBスパンを出力
	if cfg.OtelEnabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	if isSQLite(dsn) {
		// SQLiteは書き込みが直列化されるため1接続に制限
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func isSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, "sqlite:") || strings.HasPrefix(dsn, "file:")
}

func dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn)
	default:
		return mysql.Open(dsn)
	}
}
