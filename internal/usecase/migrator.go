package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"sprinkle-migrator/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("sprinkle-migrator/internal/usecase")

// MigrationRepository はマイグレーション台帳のインターフェース。
type MigrationRepository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error
	Create(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Log(ctx context.Context, id domain.MigrationID, batch int) error
	Remove(ctx context.Context, id domain.MigrationID) error
	All(ctx context.Context) ([]*domain.MigrationRecord, error)
	NextBatchNumber(ctx context.Context) (int, error)
	Table() string
}

// MigrationLocator は利用可能なマイグレーションを宣言順に列挙するインターフェース。
type MigrationLocator interface {
	Migrations() []Migration
}

// SchemaRepository はデータベース全体のテーブル操作のインターフェース。
type SchemaRepository interface {
	Tables(ctx context.Context) ([]string, error)
	DropTables(ctx context.Context, tables ...string) error
}

// MigrateOptions は Migrate の実行オプション。
type MigrateOptions struct {
	// Step が true の場合、マイグレーションごとに別のバッチとして記録する。
	Step bool
}

// Migrator はマイグレーションの解決と実行を行う。
type Migrator struct {
	repo    MigrationRepository
	locator MigrationLocator
	schema  SchemaRepository
	db      *gorm.DB
	logger  *slog.Logger
}

// NewMigrator は新しいMigratorを生成する。
func NewMigrator(repo MigrationRepository, locator MigrationLocator, schema SchemaRepository, db *gorm.DB) *Migrator {
	return &Migrator{
		repo:    repo,
		locator: locator,
		schema:  schema,
		db:      db,
		logger:  slog.Default(),
	}
}

// WithLogger はロガーを差し替える。
func (m *Migrator) WithLogger(logger *slog.Logger) *Migrator {
	m.logger = logger
	return m
}

// startRun は1回の操作ごとにrun_id付きのスパンとロガーを用意する。
func (m *Migrator) startRun(ctx context.Context, operation string) (context.Context, trace.Span, *slog.Logger) {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "Migrator."+operation,
		trace.WithAttributes(
			attribute.String("migrator.operation", operation),
			attribute.String("migrator.run_id", runID),
		),
	)
	return ctx, span, m.logger.With("operation", operation, "run_id", runID)
}

func endRun(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// index は利用可能なマイグレーションを識別子で引けるようにする。
func (m *Migrator) index() map[domain.MigrationID]Migration {
	migrations := m.locator.Migrations()
	idx := make(map[domain.MigrationID]Migration, len(migrations))
	for _, mig := range migrations {
		idx[mig.Descriptor().ID] = mig
	}
	return idx
}

func (m *Migrator) descriptors() []domain.MigrationDescriptor {
	migrations := m.locator.Migrations()
	descriptors := make([]domain.MigrationDescriptor, len(migrations))
	for i, mig := range migrations {
		descriptors[i] = mig.Descriptor()
	}
	return descriptors
}

// installedRecords は台帳の全記録を返す。台帳テーブルが無い場合は空。
func (m *Migrator) installedRecords(ctx context.Context) ([]*domain.MigrationRecord, error) {
	exists, err := m.repo.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking migration table: %w", err)
	}
	if !exists {
		return nil, nil
	}
	records, err := m.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching installed migrations: %w", err)
	}
	return records, nil
}

func (m *Migrator) resolve(ctx context.Context) (*resolver, error) {
	records, err := m.installedRecords(ctx)
	if err != nil {
		return nil, err
	}
	return newResolver(m.descriptors(), records), nil
}

// Migrate は未適用マイグレーションを依存順に適用し、適用した識別子を返す。
// 途中で失敗した場合、それまでに適用したものは記録されたまま残る。
func (m *Migrator) Migrate(ctx context.Context, opts MigrateOptions) (applied []domain.MigrationID, err error) {
	ctx, span, log := m.startRun(ctx, "migrate")
	defer func() { endRun(span, err) }()

	if err := m.repo.Create(ctx); err != nil {
		return nil, err
	}

	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := res.pending()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		log.InfoContext(ctx, "nothing to migrate")
		return nil, nil
	}

	batch, err := m.repo.NextBatchNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing next batch number: %w", err)
	}

	migrations := m.index()
	for _, id := range pending {
		if err := m.up(ctx, migrations[id], batch); err != nil {
			log.ErrorContext(ctx, "failed to apply migration",
				"migration", id,
				"batch", batch,
				"error", err,
			)
			return applied, fmt.Errorf("applying migration %s: %w", id, err)
		}
		log.InfoContext(ctx, "migration applied", "migration", id, "batch", batch)
		applied = append(applied, id)
		if opts.Step {
			batch++
		}
	}

	span.SetAttributes(attribute.Int("migrator.applied", len(applied)))
	return applied, nil
}

// up は1つのマイグレーションの適用と台帳への記録を同じトランザクションで行う。
func (m *Migrator) up(ctx context.Context, mig Migration, batch int) error {
	id := mig.Descriptor().ID
	return m.repo.InTransaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := mig.Up(ctx, tx); err != nil {
			return err
		}
		return m.repo.Log(ctx, id, batch)
	})
}

// down は1つのマイグレーションの取り消しと台帳からの削除を同じトランザクションで行う。
func (m *Migrator) down(ctx context.Context, mig Migration) error {
	id := mig.Descriptor().ID
	return m.repo.InTransaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := mig.Down(ctx, tx); err != nil {
			return err
		}
		return m.repo.Remove(ctx, id)
	})
}

// PretendToMigrate は Migrate で実行されるSQLを実行せずに返す。
func (m *Migrator) PretendToMigrate(ctx context.Context) (results []PretendResult, err error) {
	ctx, span, _ := m.startRun(ctx, "pretend_migrate")
	defer func() { endRun(span, err) }()

	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := res.pending()
	if err != nil {
		return nil, err
	}
	return m.pretend(ctx, pending, true)
}

func (m *Migrator) pretend(ctx context.Context, ids []domain.MigrationID, up bool) ([]PretendResult, error) {
	migrations := m.index()
	var results []PretendResult
	for _, id := range ids {
		session, rec := dryRun(ctx, m.db)
		var err error
		if up {
			err = migrations[id].Up(ctx, session)
		} else {
			err = migrations[id].Down(ctx, session)
		}
		if err != nil {
			return nil, fmt.Errorf("pretending migration %s: %w", id, err)
		}
		results = append(results, PretendResult{Migration: id, Statements: rec.statements})
	}
	return results, nil
}

// Rollback は新しいバッチから steps 個分を取り消し、取り消した識別子を返す。
func (m *Migrator) Rollback(ctx context.Context, steps int) (rolledBack []domain.MigrationID, err error) {
	ctx, span, log := m.startRun(ctx, "rollback")
	defer func() { endRun(span, err) }()

	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := res.rollbackPlan(steps)
	if err != nil {
		return nil, err
	}
	return m.rollbackAll(ctx, log, plan)
}

// Reset は全てのマイグレーションを取り消す。
func (m *Migrator) Reset(ctx context.Context) (rolledBack []domain.MigrationID, err error) {
	ctx, span, log := m.startRun(ctx, "reset")
	defer func() { endRun(span, err) }()

	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := res.resetPlan()
	if err != nil {
		return nil, err
	}
	return m.rollbackAll(ctx, log, plan)
}

// RollbackMigration は指定された1つのマイグレーションを取り消す。
func (m *Migrator) RollbackMigration(ctx context.Context, id domain.MigrationID) (rolledBack []domain.MigrationID, err error) {
	ctx, span, log := m.startRun(ctx, "rollback_migration")
	defer func() { endRun(span, err) }()

	plan, err := m.singleRollbackPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.rollbackAll(ctx, log, plan)
}

func (m *Migrator) singleRollbackPlan(ctx context.Context, id domain.MigrationID) ([]domain.MigrationID, error) {
	id = domain.NewMigrationID(string(id))
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !res.isInstalled(id) {
		return nil, &domain.MigrationNotFoundError{Migration: id}
	}
	plan := []domain.MigrationID{id}
	if err := res.validateRollback(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (m *Migrator) rollbackAll(ctx context.Context, log *slog.Logger, plan []domain.MigrationID) ([]domain.MigrationID, error) {
	if len(plan) == 0 {
		log.InfoContext(ctx, "nothing to rollback")
		return nil, nil
	}

	migrations := m.index()
	var rolledBack []domain.MigrationID
	for _, id := range plan {
		if err := m.down(ctx, migrations[id]); err != nil {
			log.ErrorContext(ctx, "failed to rollback migration",
				"migration", id,
				"error", err,
			)
			return rolledBack, fmt.Errorf("rolling back migration %s: %w", id, err)
		}
		log.InfoContext(ctx, "migration rolled back", "migration", id)
		rolledBack = append(rolledBack, id)
	}
	return rolledBack, nil
}

// PretendToRollback は Rollback で実行されるSQLを実行せずに返す。
func (m *Migrator) PretendToRollback(ctx context.Context, steps int) (results []PretendResult, err error) {
	ctx, span, _ := m.startRun(ctx, "pretend_rollback")
	defer func() { endRun(span, err) }()

	plan, err := m.GetMigrationsForRollback(ctx, steps)
	if err != nil {
		return nil, err
	}
	return m.pretend(ctx, plan, false)
}

// PretendToReset は Reset で実行されるSQLを実行せずに返す。
func (m *Migrator) PretendToReset(ctx context.Context) (results []PretendResult, err error) {
	ctx, span, _ := m.startRun(ctx, "pretend_reset")
	defer func() { endRun(span, err) }()

	plan, err := m.GetMigrationsForReset(ctx)
	if err != nil {
		return nil, err
	}
	return m.pretend(ctx, plan, false)
}

// PretendToRollbackMigration は RollbackMigration で実行されるSQLを実行せずに返す。
func (m *Migrator) PretendToRollbackMigration(ctx context.Context, id domain.MigrationID) (results []PretendResult, err error) {
	ctx, span, _ := m.startRun(ctx, "pretend_rollback_migration")
	defer func() { endRun(span, err) }()

	plan, err := m.singleRollbackPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.pretend(ctx, plan, false)
}

// Refresh は steps 個分のバッチを取り消してから再適用する。steps が0以下なら全て取り消す。
func (m *Migrator) Refresh(ctx context.Context, steps int) (rolledBack, applied []domain.MigrationID, err error) {
	if steps > 0 {
		rolledBack, err = m.Rollback(ctx, steps)
	} else {
		rolledBack, err = m.Reset(ctx)
	}
	if err != nil {
		return rolledBack, nil, err
	}
	applied, err = m.Migrate(ctx, MigrateOptions{})
	return rolledBack, applied, err
}

// Clean は staleなマイグレーションを台帳から削除する。Down は実行しない。
func (m *Migrator) Clean(ctx context.Context) (removed []domain.MigrationID, err error) {
	ctx, span, log := m.startRun(ctx, "clean")
	defer func() { endRun(span, err) }()

	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range res.stale() {
		if err := m.repo.Remove(ctx, id); err != nil {
			return removed, fmt.Errorf("removing stale migration %s: %w", id, err)
		}
		log.InfoContext(ctx, "stale migration removed", "migration", id)
		removed = append(removed, id)
	}
	return removed, nil
}

// ResetHard は台帳を含むデータベースの全テーブルを削除し、削除した順にテーブル名を返す。
// マイグレーションの Down は実行しない。台帳は最後に削除する。
func (m *Migrator) ResetHard(ctx context.Context) (dropped []string, err error) {
	ctx, span, log := m.startRun(ctx, "reset_hard")
	defer func() { endRun(span, err) }()

	tables, err := m.PretendToResetHard(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	if err := m.schema.DropTables(ctx, tables...); err != nil {
		return nil, fmt.Errorf("dropping tables: %w", err)
	}
	log.InfoContext(ctx, "all tables dropped", "tables", len(tables))
	return tables, nil
}

// PretendToResetHard は ResetHard で削除されるテーブル名を削除順に返す。
func (m *Migrator) PretendToResetHard(ctx context.Context) ([]string, error) {
	tables, err := m.schema.Tables(ctx)
	if err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(tables))
	ledger := false
	for _, table := range tables {
		if table == m.repo.Table() {
			ledger = true
			continue
		}
		ordered = append(ordered, table)
	}
	if ledger {
		ordered = append(ordered, m.repo.Table())
	}
	return ordered, nil
}

// GetInstalled は適用済みマイグレーションを台帳順に返す。
func (m *Migrator) GetInstalled(ctx context.Context) ([]domain.MigrationID, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.installedIDs(), nil
}

// GetAvailable は利用可能なマイグレーションを宣言順に返す。
func (m *Migrator) GetAvailable() []domain.MigrationID {
	return newResolver(m.descriptors(), nil).availableIDs()
}

// GetPending は未適用マイグレーションを依存順に返す。
func (m *Migrator) GetPending(ctx context.Context) ([]domain.MigrationID, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.pending()
}

// GetStale は適用済みだが利用できなくなったマイグレーションを返す。
func (m *Migrator) GetStale(ctx context.Context) ([]domain.MigrationID, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.stale(), nil
}

// CanRollbackMigration は指定されたマイグレーションが依存されずに適用済みか判定する。
func (m *Migrator) CanRollbackMigration(ctx context.Context, id domain.MigrationID) (bool, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return false, err
	}
	return res.canRollback(domain.NewMigrationID(string(id))), nil
}

// GetMigrationsForRollback は Rollback(steps) で取り消される順序を返す。
func (m *Migrator) GetMigrationsForRollback(ctx context.Context, steps int) ([]domain.MigrationID, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.rollbackPlan(steps)
}

// GetMigrationsForReset は Reset で取り消される順序を返す。
func (m *Migrator) GetMigrationsForReset(ctx context.Context) ([]domain.MigrationID, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.resetPlan()
}

// GetStatus は適用済み・stale・未適用の一覧を返す。未適用は宣言順。
func (m *Migrator) GetStatus(ctx context.Context) ([]domain.MigrationStatus, error) {
	res, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []domain.MigrationStatus
	for _, rec := range res.installed {
		status := domain.MigrationStatus{
			Migration: rec.Migration,
			Batch:     rec.Batch,
			State:     domain.MigrationStateInstalled,
		}
		if d, ok := res.byID[rec.Migration]; ok {
			status.Sprinkle = d.Sprinkle
		} else {
			status.State = domain.MigrationStateStale
		}
		statuses = append(statuses, status)
	}
	for _, d := range res.available {
		if res.isInstalled(d.ID) {
			continue
		}
		statuses = append(statuses, domain.MigrationStatus{
			Migration: d.ID,
			Sprinkle:  d.Sprinkle,
			State:     domain.MigrationStatePending,
		})
	}
	return statuses, nil
}
