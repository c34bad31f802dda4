package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementAttr = 300

type queryKey struct{}

type query struct {
	span      trace.Span
	operation string
	started   time.Time
}

// PGXTracer is installed on the pool config. Each statement gets a span named
// after its SQL verb, and its latency lands in db_query_duration_ms once the
// domain metrics are registered.
type PGXTracer struct{}

// TraceQueryStart opens the statement span.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, span := otel.Tracer("resto/pgx").Start(ctx, "pgx "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", statementAttr(data.SQL)),
		))
	return context.WithValue(ctx, queryKey{}, query{span: span, operation: op, started: time.Now()})
}

// TraceQueryEnd closes the span and records the latency.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(queryKey{}).(query)
	if !ok {
		return
	}
	result := "ok"
	switch {
	case data.Err == nil:
		q.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	case data.Err == pgx.ErrNoRows:
		result = "no_rows"
	default:
		result = "error"
		q.span.RecordError(data.Err)
		q.span.SetStatus(codes.Error, data.Err.Error())
	}
	q.span.End()
	if DBQueryDuration != nil {
		DBQueryDuration.WithLabelValues(q.operation, result).Observe(float64(time.Since(q.started)) / float64(time.Millisecond))
	}
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

func statementAttr(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > maxStatementAttr {
		return sql[:maxStatementAttr] + "..."
	}
	return sql
}
