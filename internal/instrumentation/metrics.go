package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrStatus    = "status"
	attrCode      = "code"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrDirection = "direction"
	attrState     = "state"
)

// Metrics provides methods for recording observability metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Dispatch metrics
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram

	// Gmail API metrics
	apiOperationsTotal   metric.Int64Counter
	apiOperationDuration metric.Float64Histogram

	// Credential metrics
	tokenRefreshTotal metric.Int64Counter
	sessionInitTotal  metric.Int64Counter

	// Attachment metrics
	attachmentBytes metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels (error codes) are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.dispatchTotal, err = meter.Int64Counter(
		"mailwarm_dispatch_total",
		metric.WithDescription("Total number of dispatched method calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_dispatch_total counter: %w", err)
	}

	m.dispatchDuration, err = meter.Float64Histogram(
		"mailwarm_dispatch_duration_seconds",
		metric.WithDescription("Dispatched method duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_dispatch_duration_seconds histogram: %w", err)
	}

	m.apiOperationsTotal, err = meter.Int64Counter(
		"mailwarm_gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_gmail_api_operations_total counter: %w", err)
	}

	m.apiOperationDuration, err = meter.Float64Histogram(
		"mailwarm_gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_gmail_api_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"mailwarm_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_token_refresh_total counter: %w", err)
	}

	m.sessionInitTotal, err = meter.Int64Counter(
		"mailwarm_session_init_total",
		metric.WithDescription("Total number of session initializations by resulting state"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_session_init_total counter: %w", err)
	}

	m.attachmentBytes, err = meter.Int64Counter(
		"mailwarm_attachment_bytes_total",
		metric.WithDescription("Attachment bytes moved through the codec"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailwarm_attachment_bytes_total counter: %w", err)
	}

	return m, nil
}

// RecordDispatch records one dispatched call with its outcome. code is the
// error code of a failed call and is only attached when detailed labels are
// enabled.
func (m *Metrics) RecordDispatch(ctx context.Context, method, status, code string, duration time.Duration) {
	if m == nil || m.dispatchTotal == nil || m.dispatchDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && code != "" {
		attrs = append(attrs, attribute.String(attrCode, code))
	}

	m.dispatchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGmailAPIOperation records a Gmail API operation with its status and duration.
//
// Parameters:
//   - operation: one of the Operation* constants
//   - status: "success" or "error"
//   - duration: time taken for the request
func (m *Metrics) RecordGmailAPIOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.apiOperationsTotal == nil || m.apiOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, ServiceGmail),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.apiOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.apiOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records a token refresh attempt.
// Result should be one of the RefreshResult* constants.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordSessionInit records the state a session reached after initialization.
func (m *Metrics) RecordSessionInit(ctx context.Context, state string) {
	if m == nil || m.sessionInitTotal == nil {
		return
	}
	m.sessionInitTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrState, state)))
}

// RecordAttachmentBytes records attachment payload volume. direction is
// DirectionInbound for downloads and DirectionOutbound for sends.
func (m *Metrics) RecordAttachmentBytes(ctx context.Context, direction string, n int64) {
	if m == nil || m.attachmentBytes == nil || n <= 0 {
		return
	}
	m.attachmentBytes.Add(ctx, n, metric.WithAttributes(attribute.String(attrDirection, direction)))
}
