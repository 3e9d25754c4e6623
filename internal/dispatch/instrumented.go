package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
)

// instrument wraps one dispatched call with a span, metrics and an audit
// record. Unregistered names are collapsed before they reach a label.
func (d *Dispatcher) instrument(ctx context.Context, method string, params Params, fn func(context.Context) (map[string]any, error)) (map[string]any, error) {
	label := instrumentation.NormalizeMethod(method, d.Has)

	ctx, span := instrumentation.StartDispatchSpan(ctx, label)
	defer span.End()

	invocation := instrumentation.NewInvocation(label).
		WithSpanContext(ctx).
		WithTarget(target(params))
	if method == MethodSend {
		to, _ := params.optionalString("to")
		cc, _ := params.optionalString("cc")
		bcc, _ := params.optionalString("bcc")
		invocation.WithRecipients(to, cc, bcc)
	}

	start := time.Now()
	result, err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	code := ""
	if err != nil {
		status = instrumentation.StatusError
		code = ErrorCode(err)
		span.SetAttributes(attribute.String(instrumentation.SpanAttrErrorCode, code))
		instrumentation.SetSpanError(span, err)
		d.logger.DebugContext(ctx, "call failed",
			logging.Method(label),
			slog.String("code", code),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	d.metrics.RecordDispatch(ctx, label, status, code, duration)
	d.audit.Log(ctx, invocation.Complete(err, code))
	return result, err
}

// target returns the provider id a call acts on, for the audit record.
func target(params Params) string {
	for _, key := range []string{"attachment_id", "message_id", "thread_id"} {
		if v, _ := params.optionalString(key); v != "" {
			return v
		}
	}
	return ""
}
