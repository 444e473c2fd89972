package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger はgormのログをslogに出力するロガー。
type GormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

// NewGormLogger は新しいGormLoggerを生成する。
func NewGormLogger(l *slog.Logger, level logger.LogLevel) *GormLogger {
	return &GormLogger{logger: l, level: level}
}

// GormLogLevel はLOG_LEVELの値をgormのログレベルに変換する。
// SQL文そのものはDEBUGの場合のみ出力する。
func GormLogLevel(level string) logger.LogLevel {
	switch level {
	case "DEBUG":
		return logger.Info
	case "ERROR":
		return logger.Error
	default:
		return logger.Warn
	}
}

// LogMode はログレベルを変更したロガーを返す。
func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

// Info はINFOログを出力する。
func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Info {
		g.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn はWARNログを出力する。
func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Warn {
		g.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error はERRORログを出力する。
func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Error {
		g.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace は実行されたSQLを出力する。レコード未検出はエラーとして扱わない。
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.logger.ErrorContext(ctx, "query failed",
			"sql", sql,
			"rows", rows,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
	case elapsed > slowQueryThreshold && g.level >= logger.Warn:
		sql, rows := fc()
		g.logger.WarnContext(ctx, "slow query",
			"sql", sql,
			"rows", rows,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	case g.level >= logger.Info:
		sql, rows := fc()
		g.logger.DebugContext(ctx, "query executed",
			"sql", sql,
			"rows", rows,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
}
