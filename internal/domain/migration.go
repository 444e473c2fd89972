// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "strings"

// legacyPrefix は旧形式の識別子に付与されていた先頭の区切り文字。
const legacyPrefix = `\`

// MigrationID はマイグレーションの識別子を表す。
// 常に正規形（先頭の区切り文字なし）で保持する。
type MigrationID string

// NewMigrationID は識別子を正規化して返す。
// 旧形式の `\Foo\Bar` と `Foo\Bar` は同じ識別子になる。
func NewMigrationID(s string) MigrationID {
	return MigrationID(strings.TrimLeft(strings.TrimSpace(s), legacyPrefix))
}

// String は正規形の文字列を返す。
func (id MigrationID) String() string {
	return string(id)
}

// Legacy は旧形式（先頭に区切り文字付き）の文字列を返す。
func (id MigrationID) Legacy() string {
	return legacyPrefix + string(NewMigrationID(string(id)))
}

// MigrationIDs は文字列を正規化した識別子のスライスに変換する。
func MigrationIDs(values ...string) []MigrationID {
	ids := make([]MigrationID, len(values))
	for i, v := range values {
		ids[i] = NewMigrationID(v)
	}
	return ids
}

// MigrationRecord は台帳（マイグレーション履歴テーブル）の1行を表す。
type MigrationRecord struct {
	ID        uint        // サロゲートキー（挿入順）
	Migration MigrationID // 正規化済み識別子
	Batch     int         // バッチ番号（1以上）
}

// MigrationDescriptor はマイグレーションの静的な宣言を表す。
type MigrationDescriptor struct {
	ID           MigrationID
	Dependencies []MigrationID
	Sprinkle     string // 宣言元のスプリンクル名
}

// DependsOn は指定された識別子に依存しているか判定する。
func (d MigrationDescriptor) DependsOn(id MigrationID) bool {
	for _, dep := range d.Dependencies {
		if NewMigrationID(string(dep)) == id {
			return true
		}
	}
	return false
}

// MigrationState はマイグレーションの状態を表す。
type MigrationState string

const (
	MigrationStateInstalled MigrationState = "installed"
	MigrationStatePending   MigrationState = "pending"
	MigrationStateStale     MigrationState = "stale"
)

// MigrationStatus はステータス表示用の1行を表す。
type MigrationStatus struct {
	Migration MigrationID
	Sprinkle  string // 台帳にしか存在しない場合は空
	Batch     int    // 未適用の場合は0
	State     MigrationState
}
