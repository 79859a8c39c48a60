package smtp

import (
	"context"
	"crypto/x509"
	"io"
	"net"
)

// CertificateValidator is consulted during a TLS upgrade in place of
// (or in addition to) the platform root store, the hook for
// pinned-certificate deployments.
type CertificateValidator func(leaf *x509.Certificate, chains [][]*x509.Certificate) error

// SecureStreamFactory upgrades a plain connection to TLS, either for
// SSL-on-connect or in response to STARTTLS. Implementations that need a
// server name indication use serverName; verify may be nil, in which case
// the implementation's default trust policy applies.
type SecureStreamFactory interface {
	Upgrade(ctx context.Context, conn net.Conn, serverName string, verify CertificateValidator) (net.Conn, error)
}

// SaslMechanism drives one authentication attempt. A single instance is
// used for exactly one AUTH exchange; Authenticator constructs a fresh
// instance per mechanism per attempt.
type SaslMechanism interface {
	// Name is the mechanism token sent on the AUTH command line.
	Name() string
	// HasInitialResponse reports whether Challenge(nil) produces the
	// initial-response bytes to place on the AUTH command line itself.
	HasInitialResponse() bool
	// Challenge computes the next response given the server's decoded
	// challenge text (nil for the initial response).
	Challenge(serverText []byte) ([]byte, error)
	// IsAuthenticated reports whether the mechanism considers the
	// exchange complete from its own side; the final word still belongs
	// to the server's reply code.
	IsAuthenticated() bool
	// NegotiatedSecurityLayer reports whether this mechanism established
	// a layer (e.g. GSSAPI confidentiality) that requires re-issuing
	// EHLO after success.
	NegotiatedSecurityLayer() bool
}

// MessageFormatter renders the message body the transaction engine sends
// after DATA/BDAT is accepted. Prepare is called once the session has
// decided the constraint the body must honor; VisitEncoding lets the
// engine discover whether the caller's content actually needs 8BITMIME or
// BINARYMIME even when the session would tolerate ConstraintNone.
type MessageFormatter interface {
	Prepare(constraint BodyConstraint)
	VisitEncoding() EncodingRequirement
	Measure(opts WriteOptions) (int64, error)
	WriteTo(opts WriteOptions, w io.Writer) error
}

// ProgressSink receives byte-transferred callbacks while the transaction
// engine streams a message body, e.g. for a progress bar.
type ProgressSink interface {
	Report(transferred, total int64)
}

// ProtocolLogger observes raw bytes crossing the wire in each
// direction. The engine itself makes no redaction decision; callers
// that want AUTH secrets redacted use an implementation built on
// smtp/secretdetector, such as smtp/wirelog.
type ProtocolLogger interface {
	LogClient(b []byte)
	LogServer(b []byte)
	LogConnect(uri string)
}
