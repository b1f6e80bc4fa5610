package observability

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records metrics for one database operation
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db      *sql.DB
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		metrics: metrics,
	}, nil
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := StartSpan(ctx, "DB Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)
	t.metrics.RecordQuery(ctx, "query", duration, err)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := StartSpan(ctx, "DB Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)
	t.metrics.RecordQuery(ctx, "exec", duration, err)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := StartSpan(ctx, "DB QueryRow",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.statement", truncateQuery(query)),
		),
	)

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.metrics.RecordQuery(ctx, "query_row", time.Since(start), nil)
	span.End()
	return row
}

// BeginTx opens a transaction with tracing. Statements inside the
// transaction run on the raw *sql.Tx and are covered by this span's
// duration only.
func (t *TraceDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	_, span := StartSpan(ctx, "DB Begin",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.metrics.RecordQuery(ctx, "begin_tx", time.Since(start), err)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	return tx, err
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// ClockMetrics holds clock admission metrics
type ClockMetrics struct {
	submissions     metric.Int64Counter
	rejections      metric.Int64Counter
	openEntries     metric.Int64UpDownCounter
	ledgerSweeps    metric.Int64Counter
	sweptRecords    metric.Int64Counter
}

// NewClockMetrics creates clock admission metric instruments
func NewClockMetrics() (*ClockMetrics, error) {
	meter := otel.Meter(instrumentationName)

	submissions, err := meter.Int64Counter(
		"fieldclock.clock.submissions",
		metric.WithDescription("Total number of admitted clock events"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"fieldclock.clock.rejections",
		metric.WithDescription("Total number of rejected clock events by reason"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, err
	}

	openEntries, err := meter.Int64UpDownCounter(
		"fieldclock.entries.open",
		metric.WithDescription("Number of currently open time entries"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, err
	}

	ledgerSweeps, err := meter.Int64Counter(
		"fieldclock.ledger.sweeps",
		metric.WithDescription("Total number of commit ledger sweep runs"),
		metric.WithUnit("{sweeps}"),
	)
	if err != nil {
		return nil, err
	}

	sweptRecords, err := meter.Int64Counter(
		"fieldclock.ledger.swept_records",
		metric.WithDescription("Total number of expired commit records removed"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	return &ClockMetrics{
		submissions:  submissions,
		rejections:   rejections,
		openEntries:  openEntries,
		ledgerSweeps: ledgerSweeps,
		sweptRecords: sweptRecords,
	}, nil
}

// RecordSubmission records an admitted clock event
func (m *ClockMetrics) RecordSubmission(ctx context.Context, operationKind string, replayed bool) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_kind", operationKind),
		attribute.Bool("replayed", replayed),
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attrs...))

	if !replayed {
		switch operationKind {
		case "clockIn":
			m.openEntries.Add(ctx, 1)
		case "clockOut":
			m.openEntries.Add(ctx, -1)
		}
	}
}

// RecordRejection records a rejected clock event
func (m *ClockMetrics) RecordRejection(ctx context.Context, operationKind, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_kind", operationKind),
		attribute.String("reason", reason),
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerSweep records a commit ledger sweep run
func (m *ClockMetrics) RecordLedgerSweep(ctx context.Context, removed int) {
	m.ledgerSweeps.Add(ctx, 1)
	m.sweptRecords.Add(ctx, int64(removed))
}
