// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"

	"sprinkle-migrator/internal/domain"

	"gorm.io/gorm"
)

// Migration はスキーマ変更の単位を表す。
// Up/Down に渡される db は本実行ではトランザクション、pretend 時はドライランのセッション。
type Migration interface {
	Descriptor() domain.MigrationDescriptor
	Up(ctx context.Context, db *gorm.DB) error
	Down(ctx context.Context, db *gorm.DB) error
}

// FuncMigration は関数で定義するマイグレーション。
// UpFunc/DownFunc が nil の場合は何もしない。
type FuncMigration struct {
	ID           domain.MigrationID
	Dependencies []domain.MigrationID
	UpFunc       func(ctx context.Context, db *gorm.DB) error
	DownFunc     func(ctx context.Context, db *gorm.DB) error
}

// Descriptor は正規化済みの宣言を返す。
func (m *FuncMigration) Descriptor() domain.MigrationDescriptor {
	return newDescriptor(m.ID, m.Dependencies)
}

// Up は UpFunc を実行する。
func (m *FuncMigration) Up(ctx context.Context, db *gorm.DB) error {
	if m.UpFunc == nil {
		return nil
	}
	return m.UpFunc(ctx, db)
}

// Down は DownFunc を実行する。
func (m *FuncMigration) Down(ctx context.Context, db *gorm.DB) error {
	if m.DownFunc == nil {
		return nil
	}
	return m.DownFunc(ctx, db)
}

// SQLMigration はSQL文の列で定義するマイグレーション。
type SQLMigration struct {
	ID           domain.MigrationID
	Dependencies []domain.MigrationID
	UpSQL        []string
	DownSQL      []string
}

// Descriptor は正規化済みの宣言を返す。
func (m *SQLMigration) Descriptor() domain.MigrationDescriptor {
	return newDescriptor(m.ID, m.Dependencies)
}

// Up は UpSQL を順に実行する。
func (m *SQLMigration) Up(ctx context.Context, db *gorm.DB) error {
	return execAll(ctx, db, m.UpSQL)
}

// Down は DownSQL を順に実行する。
func (m *SQLMigration) Down(ctx context.Context, db *gorm.DB) error {
	return execAll(ctx, db, m.DownSQL)
}

func execAll(ctx context.Context, db *gorm.DB, statements []string) error {
	for i, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("executing statement %d: %w", i+1, err)
		}
	}
	return nil
}

func newDescriptor(id domain.MigrationID, deps []domain.MigrationID) domain.MigrationDescriptor {
	normalized := make([]domain.MigrationID, len(deps))
	for i, dep := range deps {
		normalized[i] = domain.NewMigrationID(string(dep))
	}
	return domain.MigrationDescriptor{
		ID:           domain.NewMigrationID(string(id)),
		Dependencies: normalized,
	}
}
