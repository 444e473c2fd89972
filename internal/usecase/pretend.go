package usecase

import (
	"context"
	"time"

	"sprinkle-migrator/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PretendResult はドライランで生成されたSQL文を表す。
type PretendResult struct {
	Migration  domain.MigrationID
	Statements []string
}

// statementRecorder は実行されたSQLを記録するgormロガー。
type statementRecorder struct {
	statements []string
}

func (r *statementRecorder) LogMode(logger.LogLevel) logger.Interface {
	return r
}

func (r *statementRecorder) Info(context.Context, string, ...interface{}) {}

func (r *statementRecorder) Warn(context.Context, string, ...interface{}) {}

func (r *statementRecorder) Error(context.Context, string, ...interface{}) {}

func (r *statementRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.statements = append(r.statements, sql)
}

// dryRun はSQLを実行せずに記録するセッションを返す。
func dryRun(ctx context.Context, db *gorm.DB) (*gorm.DB, *statementRecorder) {
	rec := &statementRecorder{}
	session := db.Session(&gorm.Session{
		DryRun:  true,
		NewDB:   true,
		Logger:  rec,
		Context: ctx,
	})
	return session, rec
}
