package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

// PGXTracer opens client spans for queries and batches. Rows affected are recorded so
// a conditional stock decrement that matched nothing shows up in the trace.
type PGXTracer struct{}

var (
	_ pgx.QueryTracer = PGXTracer{}
	_ pgx.BatchTracer = PGXTracer{}
)

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, _ = startDBSpan(ctx, "pgx."+op,
		attribute.String("db.operation.name", op),
		attribute.String("db.query.text", shortenSQL(data.SQL)),
	)
	return ctx
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	endDBSpan(ctx, data.CommandTag.RowsAffected(), data.Err)
}

func (PGXTracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	size := 0
	if data.Batch != nil {
		size = data.Batch.Len()
	}
	ctx, _ = startDBSpan(ctx, "pgx.batch", attribute.Int("db.operation.batch.size", size))
	return ctx
}

func (PGXTracer) TraceBatchQuery(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("batch.query", trace.WithAttributes(
		attribute.String("db.operation.name", sqlOperation(data.SQL)),
		attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()),
	))
	if data.Err != nil {
		span.RecordError(data.Err)
	}
}

func (PGXTracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	endDBSpan(ctx, -1, data.Err)
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "postgresql"))
	return otel.Tracer("github.com/noah-isme/backend-koperasi/pgx").
		Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endDBSpan(ctx context.Context, rows int64, err error) {
	span := trace.SpanFromContext(ctx)
	if rows >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}
	if err != nil && err != pgx.ErrNoRows {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func sqlOperation(sql string) string {
	if fields := strings.Fields(sql); len(fields) > 0 {
		return strings.ToLower(fields[0])
	}
	return "query"
}

func shortenSQL(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > maxStatementLen {
		return sql[:maxStatementLen] + "..."
	}
	return sql
}
