// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for mailwarm.
//
// # Metrics
//
//   - mailwarm_dispatch_total / mailwarm_dispatch_duration_seconds: dispatched
//     calls by method and status
//   - mailwarm_gmail_api_operations_total / mailwarm_gmail_api_operation_duration_seconds:
//     Gmail REST requests by operation and status
//   - mailwarm_token_refresh_total: OAuth token refreshes by result
//   - mailwarm_session_init_total: session initializations by resulting state
//   - mailwarm_attachment_bytes_total: attachment payload volume by direction
//
// # Tracing
//
// Every dispatched call opens a "dispatch.<method>" server span and every
// Gmail request a "gmail.<operation>" client span beneath it.
//
// # Configuration
//
// DefaultConfig reads the environment:
//
//   - MAILWARM_INSTRUMENTATION_ENABLED (default true)
//   - MAILWARM_METRICS_EXPORTER: prometheus, otlp or stdout (default prometheus)
//   - MAILWARM_TRACING_EXPORTER: otlp, stdout or none (default none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default 0.1)
//   - MAILWARM_METRICS_DETAILED_LABELS: attach error codes to dispatch metrics
//   - MAILWARM_AUDIT_LOGGING_ENABLED, MAILWARM_AUDIT_LOGGING_INCLUDE_PII
package instrumentation
