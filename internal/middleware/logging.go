// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation  string   `json:"operation"`
	Migrations []string `json:"migrations,omitempty"`
	Pretend    bool     `json:"pretend"`
	Result     string   `json:"result"`
	Timestamp  string   `json:"timestamp"`
}

// WriteAuditLog はスキーマや台帳を変更する操作の監査ログを出力する。
func WriteAuditLog(ctx context.Context, entry AuditLog) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	slog.InfoContext(ctx, "migration operation completed",
		"operation", entry.Operation,
		"migrations", entry.Migrations,
		"pretend", entry.Pretend,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
	)
}

// RequestLogger はリクエストごとのアクセスログをslogで出力する。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.InfoContext(r.Context(), "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
