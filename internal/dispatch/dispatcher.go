package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/server"
)

// Module identity reported to the host.
const (
	ModuleName    = "gmail"
	ModuleVersion = "1.0.0"
)

// Session is the warm session the dispatcher calls into. *server.Session
// implements it.
type Session interface {
	Client() (*gmail.Client, error)
	HealthCheck() map[string]server.HealthStatus
}

// Options configures a Dispatcher. Every field is optional.
type Options struct {
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Dispatcher routes named calls to method handlers against a Session.
// It is safe for concurrent use once constructed.
type Dispatcher struct {
	session Session
	methods map[string]Method
	order   []string

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
}

// New returns a dispatcher with every Gmail method registered.
func New(session Session, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Dispatcher{
		session: session,
		methods: make(map[string]Method),
		metrics: opts.Metrics,
		audit:   opts.Audit,
		logger:  opts.Logger,
	}
	for _, m := range gmailMethods() {
		if err := d.register(m); err != nil {
			panic(err)
		}
	}
	return d
}

func (d *Dispatcher) register(m Method) error {
	name := m.Name()
	if name == "" || m.Handler == nil {
		return fmt.Errorf("method %q needs a name and a handler", name)
	}
	if _, exists := d.methods[name]; exists {
		return fmt.Errorf("method %q registered twice", name)
	}
	d.methods[name] = m
	d.order = append(d.order, name)
	return nil
}

// Has reports whether method is registered.
func (d *Dispatcher) Has(method string) bool {
	_, ok := d.methods[method]
	return ok
}

// Methods returns the registered methods in registration order.
func (d *Dispatcher) Methods() []Method {
	out := make([]Method, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.methods[name])
	}
	return out
}

// Dispatch runs method with params. Unknown names fail with
// ErrUnknownMethod; parameter problems with *MissingParameterError or
// *InvalidParameterError before the session is touched.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	return d.instrument(ctx, method, Params(params), func(ctx context.Context) (map[string]any, error) {
		m, ok := d.methods[method]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
		}
		if params == nil {
			params = map[string]any{}
		}
		return m.Handler(ctx, Params(params), d.session.Client)
	})
}

// HealthCheck reports the session's component health.
func (d *Dispatcher) HealthCheck() map[string]server.HealthStatus {
	return d.session.HealthCheck()
}

// ParamInfo describes one method parameter.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// MethodInfo describes one method.
type MethodInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`
}

// MethodList describes every registered method in registration order.
// Required parameters come first, then the rest by name.
func (d *Dispatcher) MethodList() []MethodInfo {
	out := make([]MethodInfo, 0, len(d.order))
	for _, m := range d.Methods() {
		info := MethodInfo{Name: m.Name(), Description: m.Tool.Description, Params: []ParamInfo{}}
		schema := m.Tool.InputSchema
		for name, raw := range schema.Properties {
			p := ParamInfo{Name: name, Required: slices.Contains(schema.Required, name)}
			if prop, ok := raw.(map[string]any); ok {
				p.Type, _ = prop["type"].(string)
				p.Description, _ = prop["description"].(string)
				p.Default = prop["default"]
			}
			info.Params = append(info.Params, p)
		}
		sort.Slice(info.Params, func(i, j int) bool {
			a, b := info.Params[i], info.Params[j]
			if a.Required != b.Required {
				return a.Required
			}
			return a.Name < b.Name
		})
		out = append(out, info)
	}
	return out
}

// Response is the envelope returned to the host for every call.
type Response struct {
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
	Error  *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody describes a failed call.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	// Status and Reason are set for provider failures.
	Status int    `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
	// AuthURL is set when the consent flow is required.
	AuthURL string `json:"auth_url,omitempty"`
}

// Call dispatches and wraps the outcome in a Response.
func (d *Dispatcher) Call(ctx context.Context, method string, params map[string]any) Response {
	result, err := d.Dispatch(ctx, method, params)
	if err != nil {
		return Response{Error: errorBody(err)}
	}
	return Response{OK: true, Result: result}
}

// CallJSON is Call for a raw JSON params object. Empty input means no
// params.
func (d *Dispatcher) CallJSON(ctx context.Context, method string, raw []byte) Response {
	params := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return Response{Error: errorBody(&InvalidParameterError{Name: "params", Reason: err.Error()})}
		}
	}
	return d.Call(ctx, method, params)
}

func errorBody(err error) *ErrorBody {
	body := &ErrorBody{Code: ErrorCode(err), Message: err.Error()}
	if p := paramOf(err); p != "" {
		body.Param = p
	}
	if pe := providerError(err); pe != nil {
		body.Status = pe.Status
		body.Reason = pe.Reason
	}
	if u := authURL(err); u != "" {
		body.AuthURL = u
	}
	return body
}
