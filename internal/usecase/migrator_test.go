package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sprinkle-migrator/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockMigrationRepository はテスト用のモック。スキーマ変更は実DBのトランザクションで行う。
type mockMigrationRepository struct {
	db        *gorm.DB
	exists    bool
	records   []*domain.MigrationRecord
	nextID    uint
	createErr error
	logErr    error
}

func newMockMigrationRepository(db *gorm.DB) *mockMigrationRepository {
	return &mockMigrationRepository{db: db}
}

func (m *mockMigrationRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (m *mockMigrationRepository) Create(ctx context.Context) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.exists = true
	return nil
}

func (m *mockMigrationRepository) Exists(ctx context.Context) (bool, error) {
	return m.exists, nil
}

func (m *mockMigrationRepository) Log(ctx context.Context, id domain.MigrationID, batch int) error {
	if m.logErr != nil {
		return m.logErr
	}
	m.nextID++
	m.records = append(m.records, &domain.MigrationRecord{ID: m.nextID, Migration: id, Batch: batch})
	return nil
}

func (m *mockMigrationRepository) Remove(ctx context.Context, id domain.MigrationID) error {
	var kept []*domain.MigrationRecord
	for _, r := range m.records {
		if r.Migration != id {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *mockMigrationRepository) All(ctx context.Context) ([]*domain.MigrationRecord, error) {
	return append([]*domain.MigrationRecord(nil), m.records...), nil
}

func (m *mockMigrationRepository) NextBatchNumber(ctx context.Context) (int, error) {
	last := 0
	for _, r := range m.records {
		if r.Batch > last {
			last = r.Batch
		}
	}
	return last + 1, nil
}

// seed は台帳に記録を追加する。
func (m *mockMigrationRepository) Table() string {
	return "migrations"
}

func (m *mockMigrationRepository) seed(id string, batch int) {
	m.exists = true
	m.nextID++
	m.records = append(m.records, &domain.MigrationRecord{ID: m.nextID, Migration: domain.NewMigrationID(id), Batch: batch})
}

func (m *mockMigrationRepository) ids() []domain.MigrationID {
	var out []domain.MigrationID
	for _, r := range m.records {
		out = append(out, r.Migration)
	}
	return out
}

func (m *mockMigrationRepository) batchOf(id string) int {
	for _, r := range m.records {
		if r.Migration == domain.NewMigrationID(id) {
			return r.Batch
		}
	}
	return 0
}

// mockSchemaRepository はテスト用のモック。
type mockSchemaRepository struct {
	tables  []string
	dropped []string
	dropErr error
}

func (m *mockSchemaRepository) Tables(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.tables...), nil
}

func (m *mockSchemaRepository) DropTables(ctx context.Context, tables ...string) error {
	if m.dropErr != nil {
		return m.dropErr
	}
	m.dropped = append(m.dropped, tables...)
	m.tables = nil
	return nil
}

type staticLocator []Migration

func (l staticLocator) Migrations() []Migration {
	return l
}

// tableMigration はテーブルを作成・削除するテスト用マイグレーションを返す。
func tableMigration(id, table string, deps ...string) *FuncMigration {
	return &FuncMigration{
		ID:           domain.NewMigrationID(id),
		Dependencies: domain.MigrationIDs(deps...),
		UpFunc: func(ctx context.Context, db *gorm.DB) error {
			return db.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)").Error
		},
		DownFunc: func(ctx context.Context, db *gorm.DB) error {
			return db.Exec("DROP TABLE " + table).Error
		},
	}
}

// setupTestDB はテスト用のインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func createTables(t *testing.T, db *gorm.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if err := db.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)").Error; err != nil {
			t.Fatalf("failed to create table %s: %v", table, err)
		}
	}
}

func assertTables(t *testing.T, db *gorm.DB, want bool, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if got := db.Migrator().HasTable(table); got != want {
			t.Errorf("table %s: exists=%v, want %v", table, got, want)
		}
	}
}

// batchedLocator は A, B(deps:C), C, D を宣言する。
func batchedLocator() staticLocator {
	return staticLocator{
		tableMigration("A", "a_table"),
		tableMigration("B", "b_table", "C"),
		tableMigration("C", "c_table"),
		tableMigration("D", "d_table"),
	}
}

// setupBatchedMigrator は A(b1), C(b2), B(b2), D(b3) が適用済みの状態を作る。
func setupBatchedMigrator(t *testing.T) (*Migrator, *mockMigrationRepository, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.seed("A", 1)
	repo.seed("C", 2)
	repo.seed("B", 2)
	repo.seed("D", 3)
	createTables(t, db, "a_table", "c_table", "b_table", "d_table")

	return NewMigrator(repo, batchedLocator(), &mockSchemaRepository{}, db), repo, db
}

func TestMigrator_Migrate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	locator := staticLocator{
		tableMigration("A", "a_table"),
		tableMigration("B", "b_table", "C"),
		tableMigration("C", "c_table"),
	}
	migrator := NewMigrator(repo, locator, &mockSchemaRepository{}, db)

	applied, err := migrator.Migrate(ctx, MigrateOptions{})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	assertIDs(t, applied, ids("A", "C", "B"))
	assertIDs(t, repo.ids(), ids("A", "C", "B"))
	assertTables(t, db, true, "a_table", "b_table", "c_table")

	if !repo.exists {
		t.Error("expected ledger to be created lazily")
	}
	for _, id := range []string{"A", "B", "C"} {
		if batch := repo.batchOf(id); batch != 1 {
			t.Errorf("migration %s: expected batch 1, got %d", id, batch)
		}
	}

	// 2回目は何も適用しない
	applied, err = migrator.Migrate(ctx, MigrateOptions{})
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no migrations on second run, got %v", applied)
	}
}

func TestMigrator_Migrate_NextBatch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.seed("A", 1)
	createTables(t, db, "a_table")
	locator := staticLocator{tableMigration("A", "a_table"), tableMigration("B", "b_table", "A")}

	applied, err := NewMigrator(repo, locator, &mockSchemaRepository{}, db).Migrate(ctx, MigrateOptions{})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	assertIDs(t, applied, ids("B"))
	if batch := repo.batchOf("B"); batch != 2 {
		t.Errorf("expected batch 2, got %d", batch)
	}
}

func TestMigrator_Migrate_Step(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	locator := staticLocator{tableMigration("A", "a_table"), tableMigration("B", "b_table"), tableMigration("C", "c_table")}

	_, err := NewMigrator(repo, locator, &mockSchemaRepository{}, db).Migrate(ctx, MigrateOptions{Step: true})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	for i, id := range []string{"A", "B", "C"} {
		if batch := repo.batchOf(id); batch != i+1 {
			t.Errorf("migration %s: expected batch %d, got %d", id, i+1, batch)
		}
	}
}

func TestMigrator_Migrate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	boom := errors.New("boom")
	locator := staticLocator{
		tableMigration("A", "a_table"),
		&FuncMigration{
			ID: "B",
			UpFunc: func(ctx context.Context, db *gorm.DB) error {
				if err := db.Exec("CREATE TABLE b_table (id INTEGER PRIMARY KEY)").Error; err != nil {
					return err
				}
				return boom
			},
		},
		tableMigration("C", "c_table"),
	}

	applied, err := NewMigrator(repo, locator, &mockSchemaRepository{}, db).Migrate(ctx, MigrateOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "B") {
		t.Errorf("expected error to name the failed migration, got %v", err)
	}

	// 先に適用されたものは残る
	assertIDs(t, applied, ids("A"))
	assertIDs(t, repo.ids(), ids("A"))
	assertTables(t, db, true, "a_table")
	// 失敗したマイグレーションのトランザクションは取り消される
	assertTables(t, db, false, "b_table", "c_table")
}

func TestMigrator_Migrate_LogFailureRollsBackSchema(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.logErr = errors.New("ledger unavailable")

	_, err := NewMigrator(repo, staticLocator{tableMigration("A", "a_table")}, &mockSchemaRepository{}, db).
		Migrate(ctx, MigrateOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	assertTables(t, db, false, "a_table")
}

func TestMigrator_Migrate_DependencyNotMet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	locator := staticLocator{tableMigration("A", "a_table"), tableMigration("E", "e_table", "D")}

	applied, err := NewMigrator(repo, locator, &mockSchemaRepository{}, db).Migrate(ctx, MigrateOptions{})
	var depErr *domain.DependencyNotMetError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyNotMetError, got %v", err)
	}
	if depErr.Migration != "E" || depErr.Dependency != "D" {
		t.Errorf("expected E/D, got %s/%s", depErr.Migration, depErr.Dependency)
	}

	// 解決段階のエラーでは何も変更しない
	if len(applied) != 0 || len(repo.records) != 0 {
		t.Errorf("expected no changes, got applied=%v records=%v", applied, repo.ids())
	}
	assertTables(t, db, false, "a_table")
}

func TestMigrator_Migrate_DependencyRemovedFromLedger(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.seed("A", 1)
	repo.seed("D", 2)
	locator := staticLocator{tableMigration("A", "a_table"), tableMigration("E", "e_table", "D")}
	migrator := NewMigrator(repo, locator, &mockSchemaRepository{}, db)

	pending, err := migrator.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	assertIDs(t, pending, ids("E"))

	// D が台帳から消えると E の依存が満たされなくなる
	if err := repo.Remove(ctx, "D"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, err = migrator.GetPending(ctx)
	var depErr *domain.DependencyNotMetError
	if !errors.As(err, &depErr) || depErr.Migration != "E" || depErr.Dependency != "D" {
		t.Fatalf("expected DependencyNotMetError E/D, got %v", err)
	}
}

func TestMigrator_Migrate_CreateLedgerFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.createErr = errors.New("no permission")

	_, err := NewMigrator(repo, staticLocator{tableMigration("A", "a_table")}, &mockSchemaRepository{}, db).
		Migrate(context.Background(), MigrateOptions{})
	if !errors.Is(err, repo.createErr) {
		t.Fatalf("expected create error, got %v", err)
	}
	assertTables(t, db, false, "a_table")
}

func TestMigrator_PretendToMigrate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	locator := staticLocator{
		tableMigration("A", "a_table"),
		tableMigration("B", "b_table", "C"),
		tableMigration("C", "c_table"),
	}
	migrator := NewMigrator(repo, locator, &mockSchemaRepository{}, db)

	results, err := migrator.PretendToMigrate(ctx)
	if err != nil {
		t.Fatalf("PretendToMigrate failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantTables := map[domain.MigrationID]string{"A": "a_table", "C": "c_table", "B": "b_table"}
	for i, id := range ids("A", "C", "B") {
		if results[i].Migration != id {
			t.Errorf("result %d: expected %s, got %s", i, id, results[i].Migration)
		}
		if len(results[i].Statements) != 1 || !strings.Contains(results[i].Statements[0], "CREATE TABLE "+wantTables[id]) {
			t.Errorf("result %s: unexpected statements %v", id, results[i].Statements)
		}
	}

	// スキーマも台帳も変更しない
	assertTables(t, db, false, "a_table", "b_table", "c_table")
	if repo.exists || len(repo.records) != 0 {
		t.Error("expected ledger to be untouched")
	}

	applied, err := migrator.Migrate(ctx, MigrateOptions{})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	assertIDs(t, applied, ids("A", "C", "B"))
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := context.Background()
	migrator, repo, db := setupBatchedMigrator(t)

	rolledBack, err := migrator.Rollback(ctx, 1)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("D"))
	assertIDs(t, repo.ids(), ids("A", "C", "B"))
	assertTables(t, db, false, "d_table")
	assertTables(t, db, true, "a_table", "b_table", "c_table")

	rolledBack, err = migrator.Rollback(ctx, 1)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("B", "C"))

	rolledBack, err = migrator.Rollback(ctx, 1)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("A"))

	// 履歴を使い切った後は何もしない
	for i := 0; i < 2; i++ {
		rolledBack, err = migrator.Rollback(ctx, 1)
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if len(rolledBack) != 0 {
			t.Errorf("expected no-op, got %v", rolledBack)
		}
	}
}

func TestMigrator_RollbackSteps(t *testing.T) {
	ctx := context.Background()
	migrator, repo, _ := setupBatchedMigrator(t)

	rolledBack, err := migrator.Rollback(ctx, 2)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("D", "B", "C"))
	assertIDs(t, repo.ids(), ids("A"))
}

func TestMigrator_Reset(t *testing.T) {
	ctx := context.Background()
	migrator, repo, db := setupBatchedMigrator(t)

	rolledBack, err := migrator.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("D", "B", "C", "A"))
	if len(repo.records) != 0 {
		t.Errorf("expected empty ledger, got %v", repo.ids())
	}
	assertTables(t, db, false, "a_table", "b_table", "c_table", "d_table")
}

func TestMigrator_Rollback_StaleBlocks(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.seed("A", 1)
	repo.seed("D", 2)
	createTables(t, db, "a_table")
	migrator := NewMigrator(repo, staticLocator{tableMigration("A", "a_table")}, &mockSchemaRepository{}, db)

	_, err := migrator.Rollback(ctx, 2)
	var rbErr *domain.RollbackError
	if !errors.As(err, &rbErr) {
		t.Fatalf("expected RollbackError, got %v", err)
	}
	if rbErr.Migration != "D" || rbErr.Reason != domain.RollbackReasonStale {
		t.Errorf("expected stale D, got %+v", rbErr)
	}

	// 検証エラーでは何も変更しない
	assertIDs(t, repo.ids(), ids("A", "D"))
	assertTables(t, db, true, "a_table")
}

func TestMigrator_PretendToRollback(t *testing.T) {
	ctx := context.Background()
	migrator, repo, db := setupBatchedMigrator(t)

	results, err := migrator.PretendToRollback(ctx, 2)
	if err != nil {
		t.Fatalf("PretendToRollback failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Migration != "D" || !strings.Contains(results[0].Statements[0], "DROP TABLE d_table") {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	assertTables(t, db, true, "a_table", "b_table", "c_table", "d_table")
	assertIDs(t, repo.ids(), ids("A", "C", "B", "D"))

	plan, err := migrator.GetMigrationsForRollback(ctx, 2)
	if err != nil {
		t.Fatalf("GetMigrationsForRollback failed: %v", err)
	}
	assertIDs(t, plan, ids("D", "B", "C"))

	reset, err := migrator.PretendToReset(ctx)
	if err != nil {
		t.Fatalf("PretendToReset failed: %v", err)
	}
	if len(reset) != 4 || reset[3].Migration != "A" {
		t.Errorf("unexpected reset pretend: %+v", reset)
	}
}

func TestMigrator_RollbackMigration(t *testing.T) {
	ctx := context.Background()
	migrator, repo, db := setupBatchedMigrator(t)

	_, err := migrator.RollbackMigration(ctx, "C")
	var rbErr *domain.RollbackError
	if !errors.As(err, &rbErr) || rbErr.Reason != domain.RollbackReasonDependedOn || rbErr.Dependent != "B" {
		t.Fatalf("expected RollbackError depended on by B, got %v", err)
	}

	_, err = migrator.RollbackMigration(ctx, "X")
	if !errors.Is(err, domain.ErrMigrationNotFound) {
		t.Fatalf("expected ErrMigrationNotFound, got %v", err)
	}

	results, err := migrator.PretendToRollbackMigration(ctx, `\B`)
	if err != nil {
		t.Fatalf("PretendToRollbackMigration failed: %v", err)
	}
	if len(results) != 1 || results[0].Migration != "B" {
		t.Errorf("unexpected pretend result: %+v", results)
	}

	rolledBack, err := migrator.RollbackMigration(ctx, `\B`)
	if err != nil {
		t.Fatalf("RollbackMigration failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("B"))
	assertIDs(t, repo.ids(), ids("A", "C", "D"))
	assertTables(t, db, false, "b_table")

	// B が無くなったので C を単独で取り消せる
	if _, err := migrator.RollbackMigration(ctx, "C"); err != nil {
		t.Fatalf("RollbackMigration(C) failed: %v", err)
	}
}

func TestMigrator_Refresh(t *testing.T) {
	ctx := context.Background()
	migrator, repo, db := setupBatchedMigrator(t)

	rolledBack, applied, err := migrator.Refresh(ctx, 2)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	assertIDs(t, rolledBack, ids("D", "B", "C"))
	assertIDs(t, applied, ids("C", "B", "D"))
	if batch := repo.batchOf("D"); batch != 2 {
		t.Errorf("expected re-applied batch 2, got %d", batch)
	}
	assertTables(t, db, true, "a_table", "b_table", "c_table", "d_table")

	rolledBack, applied, err = migrator.Refresh(ctx, 0)
	if err != nil {
		t.Fatalf("Refresh(0) failed: %v", err)
	}
	if len(rolledBack) != 4 || len(applied) != 4 {
		t.Errorf("expected full reset and migrate, got %v / %v", rolledBack, applied)
	}
}

func TestMigrator_Clean(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	repo.seed("A", 1)
	repo.seed("D", 2)
	migrator := NewMigrator(repo, staticLocator{tableMigration("A", "a_table")}, &mockSchemaRepository{}, db)

	removed, err := migrator.Clean(ctx)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	assertIDs(t, removed, ids("D"))
	assertIDs(t, repo.ids(), ids("A"))

	removed, err = migrator.Clean(ctx)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("expected nothing to clean, got %v", removed)
	}
}

func TestMigrator_ResetHard(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	schema := &mockSchemaRepository{tables: []string{"accounts", "migrations", "users"}}
	migrator := NewMigrator(newMockMigrationRepository(db), staticLocator{}, schema, db)

	tables, err := migrator.PretendToResetHard(ctx)
	if err != nil {
		t.Fatalf("PretendToResetHard failed: %v", err)
	}
	if len(tables) != 3 || len(schema.dropped) != 0 {
		t.Fatalf("expected 3 tables and nothing dropped, got %v / %v", tables, schema.dropped)
	}

	// 台帳は最後に削除される
	dropped, err := migrator.ResetHard(ctx)
	if err != nil {
		t.Fatalf("ResetHard failed: %v", err)
	}
	want := []string{"accounts", "users", "migrations"}
	if len(dropped) != len(want) {
		t.Fatalf("unexpected dropped tables: %v", dropped)
	}
	for i := range want {
		if dropped[i] != want[i] || schema.dropped[i] != want[i] {
			t.Errorf("drop %d: expected %s, got %s / %s", i, want[i], dropped[i], schema.dropped[i])
		}
	}
}

func TestMigrator_ResetHard_DropFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	dropErr := errors.New("drop failed")
	schema := &mockSchemaRepository{tables: []string{"migrations", "users"}, dropErr: dropErr}
	migrator := NewMigrator(newMockMigrationRepository(db), staticLocator{}, schema, db)

	dropped, err := migrator.ResetHard(ctx)
	if !errors.Is(err, dropErr) {
		t.Fatalf("expected drop error, got %v", err)
	}
	if dropped != nil {
		t.Errorf("expected no dropped tables, got %v", dropped)
	}
}

func TestMigrator_Queries(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository(db)
	locator := staticLocator{
		tableMigration("A", "a_table"),
		tableMigration("B", "b_table", "C"),
		tableMigration("C", "c_table"),
		tableMigration("E", "e_table", "D"),
	}
	migrator := NewMigrator(repo, locator, &mockSchemaRepository{}, db)

	// 台帳が無い場合は空として扱う
	installed, err := migrator.GetInstalled(ctx)
	if err != nil {
		t.Fatalf("GetInstalled failed: %v", err)
	}
	if len(installed) != 0 {
		t.Errorf("expected no installed migrations, got %v", installed)
	}

	repo.seed("A", 1)
	repo.seed("D", 2)

	assertIDs(t, migrator.GetAvailable(), ids("A", "B", "C", "E"))

	installed, _ = migrator.GetInstalled(ctx)
	assertIDs(t, installed, ids("A", "D"))

	pending, err := migrator.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	assertIDs(t, pending, ids("C", "B", "E"))

	stale, err := migrator.GetStale(ctx)
	if err != nil {
		t.Fatalf("GetStale failed: %v", err)
	}
	assertIDs(t, stale, ids("D"))

	can, err := migrator.CanRollbackMigration(ctx, "A")
	if err != nil || !can {
		t.Errorf("expected A to be rollbackable, got %v (%v)", can, err)
	}
	can, _ = migrator.CanRollbackMigration(ctx, "C")
	if can {
		t.Error("expected C to be not rollbackable: not installed")
	}

	statuses, err := migrator.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	wantStates := []struct {
		id    domain.MigrationID
		state domain.MigrationState
		batch int
	}{
		{"A", domain.MigrationStateInstalled, 1},
		{"D", domain.MigrationStateStale, 2},
		{"B", domain.MigrationStatePending, 0},
		{"C", domain.MigrationStatePending, 0},
		{"E", domain.MigrationStatePending, 0},
	}
	if len(statuses) != len(wantStates) {
		t.Fatalf("expected %d statuses, got %d", len(wantStates), len(statuses))
	}
	for i, w := range wantStates {
		s := statuses[i]
		if s.Migration != w.id || s.State != w.state || s.Batch != w.batch {
			t.Errorf("status %d: expected %s/%s/%d, got %s/%s/%d", i, w.id, w.state, w.batch, s.Migration, s.State, s.Batch)
		}
	}
}
