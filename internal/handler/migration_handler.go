// Package handler はHTTPハンドラを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/pkg/httputil"
)

// MigrationStatusReader はステータスAPIが参照する読み取り専用の操作。
type MigrationStatusReader interface {
	GetStatus(ctx context.Context) ([]domain.MigrationStatus, error)
	GetPending(ctx context.Context) ([]domain.MigrationID, error)
	GetStale(ctx context.Context) ([]domain.MigrationID, error)
	GetMigrationsForRollback(ctx context.Context, steps int) ([]domain.MigrationID, error)
	GetMigrationsForReset(ctx context.Context) ([]domain.MigrationID, error)
	CanRollbackMigration(ctx context.Context, id domain.MigrationID) (bool, error)
}

// Pinger はデータベースの疎通確認を行う。*sql.DB が満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MigrationHandler はマイグレーション状態のHTTPハンドラを提供する。
type MigrationHandler struct {
	migrator MigrationStatusReader
	db       Pinger
}

// NewMigrationHandler は新しいMigrationHandlerを生成する。
func NewMigrationHandler(migrator MigrationStatusReader, db Pinger) *MigrationHandler {
	return &MigrationHandler{migrator: migrator, db: db}
}

// MigrationStatusResponse はステータス1行のレスポンス形式。
type MigrationStatusResponse struct {
	Migration string `json:"migration"`
	Sprinkle  string `json:"sprinkle,omitempty"`
	Batch     int    `json:"batch,omitempty"`
	State     string `json:"state"`
}

// StatusResponse はステータス一覧のレスポンス形式。
type StatusResponse struct {
	Migrations []MigrationStatusResponse `json:"migrations"`
}

// MigrationListResponse は識別子一覧のレスポンス形式。
type MigrationListResponse struct {
	Migrations []string `json:"migrations"`
}

// RollbackableResponse は取り消し可否のレスポンス形式。
type RollbackableResponse struct {
	Migration    string `json:"migration"`
	Rollbackable bool   `json:"rollbackable"`
}

func toListResponse(ids []domain.MigrationID) MigrationListResponse {
	resp := MigrationListResponse{Migrations: make([]string, len(ids))}
	for i, id := range ids {
		resp.Migrations[i] = id.String()
	}
	return resp
}

// writeError はドメインエラーをHTTPステータスに対応付けて返す。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDependencyNotMet):
		httputil.Error(w, http.StatusConflict, "DEPENDENCY_NOT_MET", err.Error())
	case errors.Is(err, domain.ErrCyclicDependency):
		httputil.Error(w, http.StatusConflict, "CYCLIC_DEPENDENCY", err.Error())
	case errors.Is(err, domain.ErrRollbackUnsafe):
		httputil.Error(w, http.StatusConflict, "ROLLBACK_UNSAFE", err.Error())
	case errors.Is(err, domain.ErrMigrationNotFound):
		httputil.Error(w, http.StatusNotFound, "MIGRATION_NOT_FOUND", err.Error())
	default:
		slog.ErrorContext(r.Context(), "failed to handle request",
			"path", r.URL.Path,
			"error", err,
		)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// GetStatus は適用済み・stale・未適用の一覧を返す。
func (h *MigrationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.migrator.GetStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := StatusResponse{Migrations: make([]MigrationStatusResponse, len(statuses))}
	for i, s := range statuses {
		resp.Migrations[i] = MigrationStatusResponse{
			Migration: s.Migration.String(),
			Sprinkle:  s.Sprinkle,
			Batch:     s.Batch,
			State:     string(s.State),
		}
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GetPending は未適用マイグレーションを適用順に返す。
func (h *MigrationHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.migrator.GetPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toListResponse(pending))
}

// GetStale は staleなマイグレーションを返す。
func (h *MigrationHandler) GetStale(w http.ResponseWriter, r *http.Request) {
	stale, err := h.migrator.GetStale(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toListResponse(stale))
}

// GetRollbackPlan は steps 個分のバッチを取り消す順序を返す。steps 省略時は1。
func (h *MigrationHandler) GetRollbackPlan(w http.ResponseWriter, r *http.Request) {
	steps := 1
	if s := r.URL.Query().Get("steps"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			httputil.Error(w, http.StatusBadRequest, "INVALID_STEPS", "steps must be a positive integer")
			return
		}
		steps = n
	}

	plan, err := h.migrator.GetMigrationsForRollback(r.Context(), steps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toListResponse(plan))
}

// GetResetPlan は全て取り消す順序を返す。
func (h *MigrationHandler) GetResetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.migrator.GetMigrationsForReset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toListResponse(plan))
}

// GetRollbackable は指定されたマイグレーションを単独で取り消せるかを返す。
func (h *MigrationHandler) GetRollbackable(w http.ResponseWriter, r *http.Request) {
	id := domain.NewMigrationID(r.URL.Query().Get("migration"))
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_MIGRATION", "migration query parameter is required")
		return
	}

	ok, err := h.migrator.CanRollbackMigration(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, RollbackableResponse{Migration: id.String(), Rollbackable: ok})
}

// Healthz はデータベースへの疎通を確認する。
func (h *MigrationHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "health check failed", "error", err)
		httputil.Error(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "database unavailable")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
