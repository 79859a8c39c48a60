package smtp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/submitmail/smtpsubmit/lalog"
)

// ConnState is the session's coarse lifecycle stage.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
	Authenticated
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Authenticated:
		return "Authenticated"
	default:
		return "Disconnected"
	}
}

// Hooks are best-effort observer callbacks the Transaction Engine and
// Authenticator invoke; a nil field is simply not called.
type Hooks struct {
	OnSenderAccepted        func(mailbox string)
	OnSenderRejected        func(mailbox string, err *CommandFailedError)
	OnRecipientAccepted     func(mailbox string)
	OnRecipientRejected     func(mailbox string, err *CommandFailedError)
	OnNoRecipientsAccepted  func()
	OnMessageSent           func(serverText string)
	OnAuthenticated         func(serverText string)
}

// MetricsRecorder is the optional instrumentation hook consumed by
// Session; see package metrics for a Prometheus-backed implementation.
type MetricsRecorder interface {
	ConnectAttempted()
	ConnectSucceeded(secure bool)
	ConnectFailed()
	AuthAttempted(mechanism string)
	AuthSucceeded(mechanism string)
	AuthFailed(mechanism string)
	SendAttempted()
	SendSucceeded()
	SendFailed(kind string)
}

// Config gathers everything a Session needs beyond the bare network
// connection.
type Config struct {
	// LocalName is the domain sent as EHLO/HELO's argument. When empty,
	// an IP-literal form of the local endpoint is used instead.
	LocalName string

	// SecureStream upgrades the connection for SslOnConnect and
	// STARTTLS. Required whenever Connect is given a mode other than
	// ModePlain.
	SecureStream SecureStreamFactory

	// VerifyCertificate is passed through to SecureStream.Upgrade; a nil
	// value lets the factory apply its own default trust policy.
	VerifyCertificate CertificateValidator

	// Logger receives raw bytes crossing the wire in each direction. A
	// nil Logger disables wire logging entirely.
	Logger ProtocolLogger

	// Metrics is optional; a nil value disables instrumentation.
	Metrics MetricsRecorder

	// Hooks are optional observer callbacks for the Transaction Engine
	// and Authenticator.
	Hooks Hooks
}

// Session is the engine's single public handle: one framing stream,
// one ExtensionSet, one lifecycle stage, guarded by one mutex acquired
// for the duration of every public method. No two operations on the
// same session may be in flight concurrently.
type Session struct {
	mu sync.Mutex

	cfg    Config
	log    *lalog.Logger
	stream *framingStream
	conn   net.Conn

	state ConnState
	secure bool
	caps  ExtensionSet
}

func newSession(conn net.Conn, cfg Config) *Session {
	s := &Session{
		cfg:  cfg,
		conn: conn,
		log:  lalog.DefaultLogger,
	}
	s.stream = newFramingStream(conn, cfg.Logger)
	return s
}

// State returns the session's current lifecycle stage.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities returns the ExtensionSet from the most recent EHLO.
func (s *Session) Capabilities() ExtensionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// MaxSize returns the SIZE extension's advertised limit, 0 if absent.
func (s *Session) MaxSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps.MaxSize
}

// IsSecure reports whether the underlying connection is TLS-protected.
func (s *Session) IsSecure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secure
}

// IsAuthenticated reports whether the session completed a SASL exchange.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Authenticated
}

// fail transitions the session to Disconnected when err is fatal,
// closing the underlying connection and logging the event once.
func (s *Session) fail(err error) error {
	if err != nil && isFatal(err) {
		s.disconnectLocked()
		s.log.Warning("session", err, "disconnected after a fatal protocol error")
	}
	return err
}

func (s *Session) disconnectLocked() {
	if s.state == Disconnected {
		return
	}
	s.state = Disconnected
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// requireConnected is the common precondition check for NOOP/EXPN/VRFY
// and the transaction engine's entry point.
func (s *Session) requireConnected() error {
	if s.state == Disconnected {
		return &IoError{Inner: fmt.Errorf("session is not connected")}
	}
	return nil
}

// ctxOrBackground lets internal helpers accept a nil context from
// call sites that do not need cancellation.
func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
