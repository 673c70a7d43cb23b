package observability

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
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

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
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

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation, system string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.system", system),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// querier matches *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TraceDB wraps a connection or transaction with tracing
type TraceDB struct {
	q       querier
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced wrapper. system is the db.system attribute value.
func NewTraceDB(q querier, system string, metrics *DatabaseMetrics) *TraceDB {
	return &TraceDB{
		q:       q,
		system:  system,
		metrics: metrics,
	}
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.operation", queryOperation(query)),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, query string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, queryOperation(query), t.system, duration, err)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.q.QueryContext(ctx, query, args...)
	t.finish(ctx, span, query, start, err)
	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.q.ExecContext(ctx, query, args...)
	t.finish(ctx, span, query, start, err)
	if err == nil {
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}
	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing.
// The span ends before the row is scanned; errors surface at Scan.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	defer span.End()

	start := time.Now()
	row := t.q.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, query, start, row.Err())
	return row
}

func queryOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// BusinessMetrics holds custom business metrics. A nil *BusinessMetrics records nothing.
type BusinessMetrics struct {
	syncItems            metric.Int64Counter
	syncBatches          metric.Int64Counter
	conflictResolutions  metric.Int64Counter
	trackingPoints       metric.Int64Counter
	measurementsComputed metric.Int64Counter
	measuredArea         metric.Float64Histogram
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	syncItems, err := meter.Int64Counter(
		"geoops.sync.items",
		metric.WithDescription("Pushed sync items by entity type and outcome"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, err
	}

	syncBatches, err := meter.Int64Counter(
		"geoops.sync.batches",
		metric.WithDescription("Sync push and pull requests"),
		metric.WithUnit("{batches}"),
	)
	if err != nil {
		return nil, err
	}

	conflictResolutions, err := meter.Int64Counter(
		"geoops.sync.conflict_resolutions",
		metric.WithDescription("Resolved sync conflicts by resolution"),
		metric.WithUnit("{conflicts}"),
	)
	if err != nil {
		return nil, err
	}

	trackingPoints, err := meter.Int64Counter(
		"geoops.tracking.points",
		metric.WithDescription("Stored GPS tracking points"),
		metric.WithUnit("{points}"),
	)
	if err != nil {
		return nil, err
	}

	measurementsComputed, err := meter.Int64Counter(
		"geoops.measurements.computed",
		metric.WithDescription("Polygon geometry computations"),
		metric.WithUnit("{computations}"),
	)
	if err != nil {
		return nil, err
	}

	measuredArea, err := meter.Float64Histogram(
		"geoops.measurements.area",
		metric.WithDescription("Computed land area in hectares"),
		metric.WithUnit("ha"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		syncItems:            syncItems,
		syncBatches:          syncBatches,
		conflictResolutions:  conflictResolutions,
		trackingPoints:       trackingPoints,
		measurementsComputed: measurementsComputed,
		measuredArea:         measuredArea,
	}, nil
}

// RecordSyncItem records the outcome of one pushed item
func (m *BusinessMetrics) RecordSyncItem(ctx context.Context, orgID, entityType, status string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("organization_id", orgID),
		attribute.String("entity_type", entityType),
		attribute.String("status", status),
	}
	m.syncItems.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSyncBatch records a push or pull request
func (m *BusinessMetrics) RecordSyncBatch(ctx context.Context, orgID, operationType string, itemCount int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("organization_id", orgID),
		attribute.String("operation_type", operationType),
		attribute.Int("item_count", itemCount),
	}
	m.syncBatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConflictResolution records a manual conflict resolution
func (m *BusinessMetrics) RecordConflictResolution(ctx context.Context, orgID, resolution string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("organization_id", orgID),
		attribute.String("resolution", resolution),
	}
	m.conflictResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTrackingPoints records stored breadcrumbs
func (m *BusinessMetrics) RecordTrackingPoints(ctx context.Context, orgID string, count int) {
	if m == nil {
		return
	}
	m.trackingPoints.Add(ctx, int64(count), metric.WithAttributes(attribute.String("organization_id", orgID)))
}

// RecordMeasurement records a polygon computation
func (m *BusinessMetrics) RecordMeasurement(ctx context.Context, source string, hectares float64) {
	if m == nil {
		return
	}
	m.measurementsComputed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	m.measuredArea.Record(ctx, hectares, metric.WithAttributes(attribute.String("source", source)))
}
