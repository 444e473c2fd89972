// Package registry はスプリンクルが宣言するマイグレーションを管理する。
package registry

import (
	"fmt"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/internal/usecase"
)

// sprinkleMigration は宣言元のスプリンクル名を付与したマイグレーション。
type sprinkleMigration struct {
	usecase.Migration
	sprinkle string
}

// Descriptor は宣言元のスプリンクル名を含めた宣言を返す。
func (m sprinkleMigration) Descriptor() domain.MigrationDescriptor {
	d := m.Migration.Descriptor()
	deps := make([]domain.MigrationID, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		deps[i] = domain.NewMigrationID(string(dep))
	}
	return domain.MigrationDescriptor{
		ID:           domain.NewMigrationID(string(d.ID)),
		Dependencies: deps,
		Sprinkle:     m.sprinkle,
	}
}

// Registry は有効なスプリンクルのマイグレーションを宣言順に保持する。
type Registry struct {
	sprinkles  []string
	migrations []sprinkleMigration
	byID       map[domain.MigrationID]int
}

// New は空のRegistryを生成する。
func New() *Registry {
	return &Registry{byID: make(map[domain.MigrationID]int)}
}

// Register はスプリンクルとそのマイグレーションを登録する。
// 識別子が既に登録済みの場合は ErrDuplicateMigration を返し、何も登録しない。
func (r *Registry) Register(sprinkle string, migrations ...usecase.Migration) error {
	seen := make(map[domain.MigrationID]bool, len(migrations))
	for _, mig := range migrations {
		id := domain.NewMigrationID(string(mig.Descriptor().ID))
		if _, exists := r.byID[id]; exists || seen[id] {
			return fmt.Errorf("%w: %s (sprinkle %s)", domain.ErrDuplicateMigration, id, sprinkle)
		}
		seen[id] = true
	}

	r.sprinkles = append(r.sprinkles, sprinkle)
	for _, mig := range migrations {
		wrapped := sprinkleMigration{Migration: mig, sprinkle: sprinkle}
		r.byID[wrapped.Descriptor().ID] = len(r.migrations)
		r.migrations = append(r.migrations, wrapped)
	}
	return nil
}

// Sprinkles は登録済みスプリンクル名を登録順に返す。
func (r *Registry) Sprinkles() []string {
	return append([]string(nil), r.sprinkles...)
}

// Migrations は全マイグレーションをスプリンクルの登録順、その中の宣言順で返す。
func (r *Registry) Migrations() []usecase.Migration {
	out := make([]usecase.Migration, len(r.migrations))
	for i, mig := range r.migrations {
		out[i] = mig
	}
	return out
}

// Descriptors は全マイグレーションの宣言を返す。
func (r *Registry) Descriptors() []domain.MigrationDescriptor {
	out := make([]domain.MigrationDescriptor, len(r.migrations))
	for i, mig := range r.migrations {
		out[i] = mig.Descriptor()
	}
	return out
}

// Get は識別子（旧形式も可）でマイグレーションを取得する。
func (r *Registry) Get(id domain.MigrationID) (usecase.Migration, bool) {
	i, ok := r.byID[domain.NewMigrationID(string(id))]
	if !ok {
		return nil, false
	}
	return r.migrations[i], true
}
