// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"sprinkle-migrator/config"
)

// Version はビルド時に -ldflags で埋め込まれるバージョン。
var Version = "dev"

// マイグレーター固有のリソース属性。
const (
	LedgerTableKey = attribute.Key("migrator.ledger_table")
	SprinklesKey   = attribute.Key("migrator.sprinkles")
)

// InitTracer はトレーサープロバイダーを初期化する。
// OTEL_ENABLED=false の場合は nil を返す（トレーシング無効）。
func InitTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.OtelEnabled {
		return nil, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OtelEndpoint)}
	if cfg.OtelInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.OtelSamplingRate)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)

	// W3C TraceContext伝搬を設定
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// newResource は台帳テーブル、有効なスプリンクル、接続先DBの種類を含むリソースを生成する。
func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.OtelServiceName),
		semconv.ServiceVersion(Version),
		LedgerTableKey.String(cfg.MigrationTable),
		SprinklesKey.StringSlice(cfg.Sprinkles),
	}
	if cfg.DatabaseURL != "" {
		attrs = append(attrs, dbSystem(cfg.DatabaseURL))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func dbSystem(dsn string) attribute.KeyValue {
	switch dialector(dsn).Name() {
	case "sqlite":
		return semconv.DBSystemSqlite
	case "postgres":
		return semconv.DBSystemPostgreSQL
	default:
		return semconv.DBSystemMySQL
	}
}
