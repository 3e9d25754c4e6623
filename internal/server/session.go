package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/google"
	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
)

// ErrSessionNotReady is returned by Client before a successful Init or after
// Shutdown.
var ErrSessionNotReady = errors.New("session not ready")

// HealthComponentGmail is the HealthCheck key of the Gmail client.
const HealthComponentGmail = "gmail_service"

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// CredentialSource produces the credentials a session is built from.
// *google.CredentialStore implements it.
type CredentialSource interface {
	Acquire(ctx context.Context) (*google.Credentials, error)
}

// HealthStatus is the health of one session component.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Credentials CredentialSource
	Gmail       gmail.Options

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// HTTPClient builds the authorized transport. Defaults to
	// google.NewHTTPClient.
	HTTPClient func(oauth2.TokenSource) *http.Client
}

// Session owns the authenticated Gmail client for the lifetime of the
// process. It is built once by Init and shared by every dispatched call.
//
// Uninitialized moves to Ready or Failed on the first Init. Failed is
// terminal: later calls return the original error and a new Session is
// needed to retry.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu     sync.RWMutex
	state  State
	err    error
	client *gmail.Client
	creds  *google.Credentials
}

// NewSession returns an uninitialized session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = func(ts oauth2.TokenSource) *http.Client { return google.NewHTTPClient(ts) }
	}
	cfg.Gmail.Logger = cfg.Logger
	cfg.Gmail.Metrics = cfg.Metrics
	return &Session{
		cfg:    cfg,
		logger: logging.WithComponent(cfg.Logger, "session"),
	}
}

// Init acquires credentials and builds the Gmail client. It is idempotent:
// once Ready it returns nil, once Failed it returns the stored error.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateFailed:
		return s.err
	case StateClosed:
		return fmt.Errorf("%w: session shut down", ErrSessionNotReady)
	}

	if err := s.init(ctx); err != nil {
		s.state = StateFailed
		s.err = err
		s.cfg.Metrics.RecordSessionInit(ctx, instrumentation.SessionStateFailed)
		s.logger.ErrorContext(ctx, "session initialization failed", logging.Err(err))
		return err
	}
	s.state = StateReady
	s.cfg.Metrics.RecordSessionInit(ctx, instrumentation.SessionStateReady)
	s.logger.InfoContext(ctx, "session ready", logging.Location(s.creds.Source))
	return nil
}

func (s *Session) init(ctx context.Context) error {
	if s.cfg.Credentials == nil {
		return fmt.Errorf("%w: no credential source configured", google.ErrCredentialsMissing)
	}
	creds, err := s.cfg.Credentials.Acquire(ctx)
	if err != nil {
		return err
	}

	ts := creds.TokenSource(ctx, logging.NewSlogAdapter(s.cfg.Logger), s.cfg.Metrics)
	client, err := gmail.NewClient(ctx, s.cfg.HTTPClient(ts), s.cfg.Gmail)
	if err != nil {
		return err
	}
	s.creds = creds
	s.client = client
	return nil
}

// Client returns the Gmail client of a Ready session.
func (s *Session) Client() (*gmail.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.state {
	case StateReady:
		return s.client, nil
	case StateFailed:
		return nil, s.err
	case StateClosed:
		return nil, fmt.Errorf("%w: session shut down", ErrSessionNotReady)
	default:
		return nil, ErrSessionNotReady
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HealthCheck reports the health of each session component.
func (s *Session) HealthCheck() map[string]HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st HealthStatus
	switch s.state {
	case StateReady:
		st = HealthStatus{OK: true, Message: "Gmail service initialized"}
	case StateFailed:
		st = HealthStatus{Message: s.err.Error()}
	case StateClosed:
		st = HealthStatus{Message: "session shut down"}
	default:
		st = HealthStatus{Message: "Gmail service not initialized"}
	}
	return map[string]HealthStatus{HealthComponentGmail: st}
}

// Shutdown releases the client. A shut down session cannot be reused.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.client = nil
	s.creds = nil
	s.logger.Info("session shut down")
	return nil
}
