// Package sprinkle は組み込みスプリンクルのマイグレーションとその登録を提供する。
package sprinkle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/internal/registry"
	"sprinkle-migrator/internal/usecase"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppSprinkle は MIGRATIONS_DIR から読み込むマイグレーションのスプリンクル名。
const AppSprinkle = "app"

// ErrUnknownSprinkle は組み込みに存在しないスプリンクル名が指定された場合のエラー。
var ErrUnknownSprinkle = errors.New("unknown sprinkle")

var builtins = map[string]func() []usecase.Migration{
	"core":    CoreMigrations,
	"account": AccountMigrations,
}

// Load は names の順に組み込みスプリンクルを登録し、migrationsDir が存在すれば
// そのSQLマイグレーションを AppSprinkle として最後に登録する。
func Load(reg *registry.Registry, names []string, migrationsDir string) error {
	for _, name := range names {
		migrations, ok := builtins[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSprinkle, name)
		}
		if err := reg.Register(name, migrations()...); err != nil {
			return err
		}
	}

	if migrationsDir == "" {
		return nil
	}
	if _, err := os.Stat(migrationsDir); errors.Is(err, os.ErrNotExist) {
		slog.Warn("migrations directory not found, skipping", "dir", migrationsDir)
		return nil
	}

	migrations, err := registry.LoadSQLDir(migrationsDir)
	if err != nil {
		return err
	}
	return reg.Register(AppSprinkle, migrations...)
}

// createTable は model のテーブルを作成し、取り消し時に削除するマイグレーションを返す。
// model はインデックスや関連を持たない構造体とする。
func createTable(id, table string, model interface{}, deps ...string) *usecase.FuncMigration {
	return &usecase.FuncMigration{
		ID:           domain.NewMigrationID(id),
		Dependencies: domain.MigrationIDs(deps...),
		UpFunc: func(ctx context.Context, db *gorm.DB) error {
			return db.WithContext(ctx).Table(table).Migrator().CreateTable(model)
		},
		DownFunc: func(ctx context.Context, db *gorm.DB) error {
			return db.WithContext(ctx).Exec("DROP TABLE IF EXISTS ?", clause.Table{Name: table}).Error
		},
	}
}
