package usecase

import (
	"sort"

	"sprinkle-migrator/internal/domain"
)

// resolver は利用可能なマイグレーションと台帳から実行計画を組み立てる。
// 状態を持たないスナップショットで、DBにはアクセスしない。
type resolver struct {
	available []domain.MigrationDescriptor
	byID      map[domain.MigrationID]domain.MigrationDescriptor
	installed []*domain.MigrationRecord
	batchOf   map[domain.MigrationID]int
}

func newResolver(available []domain.MigrationDescriptor, installed []*domain.MigrationRecord) *resolver {
	r := &resolver{
		available: available,
		byID:      make(map[domain.MigrationID]domain.MigrationDescriptor, len(available)),
		installed: installed,
		batchOf:   make(map[domain.MigrationID]int, len(installed)),
	}
	for _, d := range available {
		r.byID[d.ID] = d
	}
	for _, rec := range installed {
		r.batchOf[rec.Migration] = rec.Batch
	}
	return r
}

func (r *resolver) isInstalled(id domain.MigrationID) bool {
	_, ok := r.batchOf[id]
	return ok
}

func (r *resolver) isAvailable(id domain.MigrationID) bool {
	_, ok := r.byID[id]
	return ok
}

// installedIDs は台帳の挿入順に識別子を返す。
func (r *resolver) installedIDs() []domain.MigrationID {
	ids := make([]domain.MigrationID, len(r.installed))
	for i, rec := range r.installed {
		ids[i] = rec.Migration
	}
	return ids
}

// availableIDs は宣言順に識別子を返す。
func (r *resolver) availableIDs() []domain.MigrationID {
	ids := make([]domain.MigrationID, len(r.available))
	for i, d := range r.available {
		ids[i] = d.ID
	}
	return ids
}

// pending は未適用マイグレーションを依存関係を満たす順に返す。
// 依存先が未適用かつ宣言順で後ろにある場合は前に引き上げる。
func (r *resolver) pending() ([]domain.MigrationID, error) {
	for _, d := range r.available {
		if r.isInstalled(d.ID) {
			continue
		}
		for _, dep := range d.Dependencies {
			if !r.isInstalled(dep) && !r.isAvailable(dep) {
				return nil, &domain.DependencyNotMetError{Migration: d.ID, Dependency: dep}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[domain.MigrationID]int, len(r.available))
	var ordered []domain.MigrationID

	var visit func(d domain.MigrationDescriptor) error
	visit = func(d domain.MigrationDescriptor) error {
		switch state[d.ID] {
		case done:
			return nil
		case visiting:
			return &domain.CyclicDependencyError{Migration: d.ID}
		}
		state[d.ID] = visiting
		for _, dep := range d.Dependencies {
			if r.isInstalled(dep) {
				continue
			}
			if err := visit(r.byID[dep]); err != nil {
				return err
			}
		}
		state[d.ID] = done
		ordered = append(ordered, d.ID)
		return nil
	}

	for _, d := range r.available {
		if r.isInstalled(d.ID) {
			continue
		}
		if err := visit(d); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// stale は適用済みだが利用できなくなったマイグレーションを台帳順に返す。
func (r *resolver) stale() []domain.MigrationID {
	var ids []domain.MigrationID
	for _, rec := range r.installed {
		if !r.isAvailable(rec.Migration) {
			ids = append(ids, rec.Migration)
		}
	}
	return ids
}

// canRollback は他の適用済みマイグレーションから依存されていないか判定する。
func (r *resolver) canRollback(id domain.MigrationID) bool {
	if !r.isInstalled(id) {
		return false
	}
	return r.dependentOf(id, nil) == ""
}

// dependentOf は id に依存している適用済みマイグレーションを返す。
// removed に含まれるものは除外する。見つからなければ空文字。
func (r *resolver) dependentOf(id domain.MigrationID, removed map[domain.MigrationID]bool) domain.MigrationID {
	for _, rec := range r.installed {
		if rec.Migration == id || removed[rec.Migration] {
			continue
		}
		d, ok := r.byID[rec.Migration]
		if ok && d.DependsOn(id) {
			return rec.Migration
		}
	}
	return ""
}

// validateRollback は計画の先頭から順に安全にロールバックできるか検証する。
// 先に取り除かれるマイグレーションからの依存は問題にしない。
func (r *resolver) validateRollback(plan []domain.MigrationID) error {
	removed := make(map[domain.MigrationID]bool, len(plan))
	for _, id := range plan {
		if !r.isInstalled(id) {
			return &domain.RollbackError{Migration: id, Reason: domain.RollbackReasonNotInstalled}
		}
		if !r.isAvailable(id) {
			return &domain.RollbackError{Migration: id, Reason: domain.RollbackReasonStale}
		}
		if dependent := r.dependentOf(id, removed); dependent != "" {
			return &domain.RollbackError{
				Migration: id,
				Reason:    domain.RollbackReasonDependedOn,
				Dependent: dependent,
			}
		}
		removed[id] = true
	}
	return nil
}

// batchesDesc は台帳のバッチ番号を降順で返す。
func (r *resolver) batchesDesc() []int {
	seen := make(map[int]bool)
	var batches []int
	for _, rec := range r.installed {
		if !seen[rec.Batch] {
			seen[rec.Batch] = true
			batches = append(batches, rec.Batch)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(batches)))
	return batches
}

// rollbackPlan は新しいバッチから steps 個分のロールバック順を返す。
// バッチ内は台帳の逆順。steps が1未満の場合は1として扱う。
func (r *resolver) rollbackPlan(steps int) ([]domain.MigrationID, error) {
	if steps < 1 {
		steps = 1
	}
	batches := r.batchesDesc()
	if steps > len(batches) {
		steps = len(batches)
	}

	var plan []domain.MigrationID
	for _, batch := range batches[:steps] {
		for i := len(r.installed) - 1; i >= 0; i-- {
			if r.installed[i].Batch == batch {
				plan = append(plan, r.installed[i].Migration)
			}
		}
	}

	if err := r.validateRollback(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// resetPlan は全バッチ分のロールバック順を返す。
func (r *resolver) resetPlan() ([]domain.MigrationID, error) {
	return r.rollbackPlan(len(r.batchesDesc()))
}
