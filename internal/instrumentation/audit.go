package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/mailwarm/internal/logging"
)

// Invocation captures one dispatched call for audit logging.
//
// Recipients holds the raw recipient list of a send. It is PII and only
// logged in clear when the audit logger is configured with IncludePII.
type Invocation struct {
	Method     string
	Recipients string
	Target     string // message, thread or attachment id the call acted on

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Code      string
	Error     string

	TraceID string
	SpanID  string
}

// NewInvocation creates a new Invocation with timing started.
// Call Complete when the method returns.
func NewInvocation(method string) *Invocation {
	return &Invocation{
		Method:    method,
		StartTime: time.Now(),
	}
}

// WithRecipients records the recipient list of an outgoing message.
func (inv *Invocation) WithRecipients(list ...string) *Invocation {
	var nonEmpty []string
	for _, l := range list {
		if l != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	inv.Recipients = strings.Join(nonEmpty, ",")
	return inv
}

// WithTarget records the provider id the call acted on.
func (inv *Invocation) WithTarget(id string) *Invocation {
	inv.Target = id
	return inv
}

// WithSpanContext extracts trace context from the current span.
func (inv *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		inv.TraceID = span.SpanContext().TraceID().String()
		inv.SpanID = span.SpanContext().SpanID().String()
	}
	return inv
}

// Complete marks the invocation as finished. code is the error code of a
// failed call and is ignored when err is nil.
func (inv *Invocation) Complete(err error, code string) *Invocation {
	inv.Duration = time.Since(inv.StartTime)
	inv.Success = err == nil
	if err != nil {
		inv.Error = err.Error()
		inv.Code = code
	}
	return inv
}

// Status returns "success" or "error".
func (inv *Invocation) Status() string {
	if inv.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the attributes for an audit record. Recipient addresses
// are hashed unless includePII is set.
func (inv *Invocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		logging.Method(inv.Method),
		slog.Duration(logging.KeyDuration, inv.Duration),
		logging.Status(inv.Status()),
	}

	if inv.Recipients != "" {
		if includePII {
			attrs = append(attrs, slog.String("recipients", inv.Recipients))
		} else {
			attrs = append(attrs, logging.Recipients(inv.Recipients))
		}
	}
	if inv.Target != "" {
		attrs = append(attrs, slog.String("target", inv.Target))
	}
	if inv.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", inv.TraceID), slog.String("span_id", inv.SpanID))
	}
	if inv.Code != "" {
		attrs = append(attrs, slog.String("code", inv.Code))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, inv.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per dispatched call.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes the invocation. Successful calls are logged at info level,
// failures at warn.
func (al *AuditLogger) Log(ctx context.Context, inv *Invocation) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelInfo
	msg := "method_executed"
	if !inv.Success {
		level = slog.LevelWarn
		msg = "method_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, inv.LogAttrs(al.includePII)...)
}
