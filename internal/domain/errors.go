package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationNotFound は指定されたマイグレーションが台帳に存在しない場合のエラー。
	ErrMigrationNotFound = errors.New("migration not found")

	// ErrDependencyNotMet は依存先マイグレーションが適用済みでも利用可能でもない場合のエラー。
	ErrDependencyNotMet = errors.New("migration dependency not met")

	// ErrRollbackUnsafe はロールバックすると依存関係が壊れる場合のエラー。
	ErrRollbackUnsafe = errors.New("migration cannot be rolled back")

	// ErrCyclicDependency は未適用マイグレーション間に循環依存がある場合のエラー。
	ErrCyclicDependency = errors.New("cyclic migration dependency")

	// ErrMigrationAlreadyLogged は台帳に同じ識別子が既に記録されている場合のエラー。
	ErrMigrationAlreadyLogged = errors.New("migration already logged")

	// ErrDuplicateMigration は同じ識別子のマイグレーションが複数登録された場合のエラー。
	ErrDuplicateMigration = errors.New("duplicate migration")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)

// MigrationNotFoundError は台帳に存在しないマイグレーションを表す。
type MigrationNotFoundError struct {
	Migration MigrationID
}

func (e *MigrationNotFoundError) Error() string {
	return fmt.Sprintf("migration %s not found", e.Migration)
}

// Unwrap は errors.Is 用のセンチネルを返す。
func (e *MigrationNotFoundError) Unwrap() error {
	return ErrMigrationNotFound
}

// DependencyNotMetError は満たされていない依存関係を表す。
type DependencyNotMetError struct {
	Migration  MigrationID
	Dependency MigrationID
}

func (e *DependencyNotMetError) Error() string {
	return fmt.Sprintf("migration %s depends on %s, which is neither installed nor available",
		e.Migration, e.Dependency)
}

// Unwrap は errors.Is 用のセンチネルを返す。
func (e *DependencyNotMetError) Unwrap() error {
	return ErrDependencyNotMet
}

// RollbackReason はロールバックできない理由を表す。
type RollbackReason string

const (
	RollbackReasonNotInstalled RollbackReason = "not installed"
	RollbackReasonStale        RollbackReason = "stale"
	RollbackReasonDependedOn   RollbackReason = "depended on"
)

// RollbackError は安全にロールバックできないマイグレーションを表す。
type RollbackError struct {
	Migration MigrationID
	Reason    RollbackReason
	Dependent MigrationID // Reason が depended on の場合のみ設定される
}

func (e *RollbackError) Error() string {
	switch e.Reason {
	case RollbackReasonNotInstalled:
		return fmt.Sprintf("cannot rollback migration %s: not installed", e.Migration)
	case RollbackReasonStale:
		return fmt.Sprintf("cannot rollback migration %s: migration is stale (no longer available)", e.Migration)
	case RollbackReasonDependedOn:
		return fmt.Sprintf("cannot rollback migration %s: installed migration %s depends on it",
			e.Migration, e.Dependent)
	default:
		return fmt.Sprintf("cannot rollback migration %s", e.Migration)
	}
}

// Unwrap は errors.Is 用のセンチネルを返す。
func (e *RollbackError) Unwrap() error {
	return ErrRollbackUnsafe
}

// CyclicDependencyError は循環依存に含まれるマイグレーションを表す。
type CyclicDependencyError struct {
	Migration MigrationID
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("migration %s is part of a dependency cycle", e.Migration)
}

// Unwrap は errors.Is 用のセンチネルを返す。
func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}
