package repository

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// SchemaRepository はデータベース全体のテーブルを扱うリポジトリ。
type SchemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository は新しいSchemaRepositoryを生成する。
func NewSchemaRepository(db *gorm.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// Tables はデータベース内の全テーブル名を名前順に返す。
// SQLite の内部テーブル (sqlite_*) は含めない。
func (r *SchemaRepository) Tables(ctx context.Context) ([]string, error) {
	all, err := r.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tables",
			"operation", "tables",
			"error", err,
		)
		return nil, err
	}

	tables := make([]string, 0, len(all))
	for _, table := range all {
		if r.isInternal(table) {
			continue
		}
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables, nil
}

func (r *SchemaRepository) isInternal(table string) bool {
	return r.db.Dialector.Name() == "sqlite" && strings.HasPrefix(table, "sqlite_")
}

// DropTables は指定されたテーブルを引数の順に削除する。
// トランザクション内の DDL に対応するデータベースでは、失敗時に全ての削除が取り消される。
func (r *SchemaRepository) DropTables(ctx context.Context, tables ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		migrator := tx.Migrator()
		for _, table := range tables {
			if err := migrator.DropTable(table); err != nil {
				slog.ErrorContext(ctx, "failed to drop table",
					"operation", "drop_tables",
					"table", table,
					"error", err,
				)
				return err
			}
		}
		return nil
	})
}
