// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sprinkle-migrator/internal/domain"

	"gorm.io/gorm"
)

// DefaultMigrationTable はマイグレーション台帳のデフォルトテーブル名。
const DefaultMigrationTable = "migrations"

// MigrationModel はマイグレーション台帳テーブルのモデル。
type MigrationModel struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Migration string `gorm:"column:migration;type:varchar(255);not null"`
	Batch     int    `gorm:"column:batch;not null"`
}

// TableName はテーブル名を指定。
func (MigrationModel) TableName() string {
	return DefaultMigrationTable
}

func (m *MigrationModel) toDomain() *domain.MigrationRecord {
	return &domain.MigrationRecord{
		ID:        m.ID,
		Migration: domain.NewMigrationID(m.Migration),
		Batch:     m.Batch,
	}
}

type txKey struct{}

// MigrationRepository はマイグレーション台帳を管理するリポジトリ。
type MigrationRepository struct {
	db    *gorm.DB
	table string
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
// table が空の場合は DefaultMigrationTable を使う。
func NewMigrationRepository(db *gorm.DB, table string) *MigrationRepository {
	if table == "" {
		table = DefaultMigrationTable
	}
	return &MigrationRepository{db: db, table: table}
}

// Table は台帳のテーブル名を返す。
func (r *MigrationRepository) Table() string {
	return r.table
}

// conn はコンテキストにトランザクションがあればそれを、なければ通常の接続を返す。
func (r *MigrationRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// InTransaction は fn をトランザクション内で実行する。
// fn に渡されるコンテキストで呼び出した台帳操作は同じトランザクションを使う。
func (r *MigrationRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), tx)
	})
}

// Create は台帳テーブルを作成する。既に存在する場合は何もしない。
func (r *MigrationRepository) Create(ctx context.Context) error {
	if err := r.conn(ctx).Table(r.table).AutoMigrate(&MigrationModel{}); err != nil {
		slog.ErrorContext(ctx, "failed to create migration table",
			"operation", "create",
			"table", r.table,
			"error", err,
		)
		return fmt.Errorf("creating migration table %s: %w", r.table, err)
	}
	return nil
}

// Exists は台帳テーブルが存在するか確認する。
func (r *MigrationRepository) Exists(ctx context.Context) (bool, error) {
	return r.conn(ctx).Migrator().HasTable(r.table), nil
}

// Delete は台帳テーブルを削除する。存在しない場合は何もしない。
func (r *MigrationRepository) Delete(ctx context.Context) error {
	if err := r.conn(ctx).Migrator().DropTable(r.table); err != nil {
		slog.ErrorContext(ctx, "failed to drop migration table",
			"operation", "delete",
			"table", r.table,
			"error", err,
		)
		return fmt.Errorf("dropping migration table %s: %w", r.table, err)
	}
	return nil
}

// Log はマイグレーションの適用を記録する。batch が0以下の場合は次のバッチ番号を使う。
func (r *MigrationRepository) Log(ctx context.Context, id domain.MigrationID, batch int) error {
	id = domain.NewMigrationID(string(id))

	exists, err := r.Has(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrMigrationAlreadyLogged, id)
	}

	if batch <= 0 {
		if batch, err = r.NextBatchNumber(ctx); err != nil {
			return err
		}
	}

	model := &MigrationModel{
		Migration: id.String(),
		Batch:     batch,
	}
	if err := r.conn(ctx).Table(r.table).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to log migration",
			"operation", "log",
			"migration", id,
			"batch", batch,
			"error", err,
		)
		return err
	}
	return nil
}

// Remove はマイグレーションの記録を削除する。旧形式の識別子の行も対象にする。
func (r *MigrationRepository) Remove(ctx context.Context, id domain.MigrationID) error {
	err := r.conn(ctx).
		Table(r.table).
		Where("migration IN ?", identifierForms(id)).
		Delete(&MigrationModel{}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove migration",
			"operation", "remove",
			"migration", id,
			"error", err,
		)
		return err
	}
	return nil
}

// Has はマイグレーションが記録されているか確認する。
func (r *MigrationRepository) Has(ctx context.Context, id domain.MigrationID) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Table(r.table).
		Where("migration IN ?", identifierForms(id)).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to check migration",
			"operation", "has",
			"migration", id,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// Get はマイグレーションの記録を取得する。存在しない場合は MigrationNotFoundError を返す。
func (r *MigrationRepository) Get(ctx context.Context, id domain.MigrationID) (*domain.MigrationRecord, error) {
	var model MigrationModel
	err := r.conn(ctx).
		Table(r.table).
		Where("migration IN ?", identifierForms(id)).
		Order("id ASC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.MigrationNotFoundError{Migration: domain.NewMigrationID(string(id))}
		}
		slog.ErrorContext(ctx, "failed to get migration",
			"operation", "get",
			"migration", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// List は識別子の一覧を返す。batch が0の場合は全バッチが対象。
func (r *MigrationRepository) List(ctx context.Context, batch int, ascending bool) ([]domain.MigrationID, error) {
	query := r.conn(ctx).Table(r.table)
	if batch > 0 {
		query = query.Where("batch = ?", batch)
	}
	if ascending {
		query = query.Order("id ASC")
	} else {
		query = query.Order("id DESC")
	}

	var names []string
	if err := query.Pluck("migration", &names).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list migrations",
			"operation", "list",
			"batch", batch,
			"error", err,
		)
		return nil, err
	}
	return domain.MigrationIDs(names...), nil
}

// Last は最新バッチの識別子一覧を返す。
func (r *MigrationRepository) Last(ctx context.Context) ([]domain.MigrationID, error) {
	batch, err := r.LastBatchNumber(ctx)
	if err != nil {
		return nil, err
	}
	if batch == 0 {
		return nil, nil
	}
	return r.List(ctx, batch, true)
}

// All は全ての記録を挿入順に返す。
func (r *MigrationRepository) All(ctx context.Context) ([]*domain.MigrationRecord, error) {
	var models []MigrationModel
	if err := r.conn(ctx).Table(r.table).Order("id ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all migrations",
			"operation", "all",
			"error", err,
		)
		return nil, err
	}

	records := make([]*domain.MigrationRecord, len(models))
	for i := range models {
		records[i] = models[i].toDomain()
	}
	return records, nil
}

// LastBatchNumber は最大のバッチ番号を返す。台帳が空の場合は0。
func (r *MigrationRepository) LastBatchNumber(ctx context.Context) (int, error) {
	var maxBatch *int
	err := r.conn(ctx).
		Table(r.table).
		Select("MAX(batch)").
		Scan(&maxBatch).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to get last batch number",
			"operation", "last_batch_number",
			"error", err,
		)
		return 0, err
	}
	if maxBatch == nil {
		return 0, nil
	}
	return *maxBatch, nil
}

// NextBatchNumber は次に使うバッチ番号を返す。台帳が空の場合は1。
func (r *MigrationRepository) NextBatchNumber(ctx context.Context) (int, error) {
	last, err := r.LastBatchNumber(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// identifierForms は正規形と旧形式の両方を返す。
func identifierForms(id domain.MigrationID) []string {
	canonical := domain.NewMigrationID(string(id))
	return []string{canonical.String(), canonical.Legacy()}
}
