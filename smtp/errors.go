package smtp

import "fmt"

// CommandFailureKind classifies a non-success reply to a
// transactional command.
type CommandFailureKind int

const (
	SenderNotAccepted CommandFailureKind = iota
	RecipientNotAccepted
	MessageNotAccepted
	UnexpectedStatus
)

func (k CommandFailureKind) String() string {
	switch k {
	case SenderNotAccepted:
		return "SenderNotAccepted"
	case RecipientNotAccepted:
		return "RecipientNotAccepted"
	case MessageNotAccepted:
		return "MessageNotAccepted"
	default:
		return "UnexpectedStatus"
	}
}

// CommandFailedError is non-fatal: the session remains connected (after an
// RSET where applicable) unless the caller's next operation is affected by
// the transaction having been voided.
type CommandFailedError struct {
	Code    uint16
	Text    string
	Kind    CommandFailureKind
	Mailbox string
}

func (e *CommandFailedError) Error() string {
	if e.Mailbox != "" {
		return fmt.Sprintf("smtp: %s for %q: %d %s", e.Kind, e.Mailbox, e.Code, e.Text)
	}
	return fmt.Sprintf("smtp: %s: %d %s", e.Kind, e.Code, e.Text)
}

// ProtocolParseError is fatal: the session must disconnect.
type ProtocolParseError struct {
	Details      string
	LastResponse *Response
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("smtp: protocol parse error: %s", e.Details)
}

// UnexpectedDisconnectError is fatal: the peer closed the connection
// mid-response.
type UnexpectedDisconnectError struct {
	LastResponse *Response
}

func (e *UnexpectedDisconnectError) Error() string {
	if e.LastResponse != nil {
		return fmt.Sprintf("smtp: server disconnected unexpectedly after %d %s", e.LastResponse.Code, e.LastResponse.Text)
	}
	return "smtp: server disconnected unexpectedly"
}

// NotAuthenticatedError is surfaced on a 530 reply; the session stays
// connected.
type NotAuthenticatedError struct {
	Code uint16
	Text string
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("smtp: not authenticated: %d %s", e.Code, e.Text)
}

// AuthenticationFailedError is non-fatal: the session remains connected
// but unauthenticated.
type AuthenticationFailedError struct {
	Status uint16
	Text   string
	Inner  error
}

func (e *AuthenticationFailedError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("smtp: authentication failed: %d %s: %v", e.Status, e.Text, e.Inner)
	}
	return fmt.Sprintf("smtp: authentication failed: %d %s", e.Status, e.Text)
}

func (e *AuthenticationFailedError) Unwrap() error { return e.Inner }

// NoCompatibleMechanismError is surfaced when the server advertised AUTH
// but no mechanism could be constructed from the supplied credentials.
type NoCompatibleMechanismError struct{}

func (e *NoCompatibleMechanismError) Error() string {
	return "smtp: no compatible SASL mechanism is available for this server"
}

// FeatureNotSupportedError is raised before any I/O takes place; non-fatal.
type FeatureNotSupportedError struct {
	Feature string
}

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("smtp: server does not support %s", e.Feature)
}

// CancelledError is fatal: the session disconnects.
type CancelledError struct {
	Inner error
}

func (e *CancelledError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("smtp: operation cancelled: %v", e.Inner)
	}
	return "smtp: operation cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Inner }

// IoError is fatal: the session disconnects. It wraps the underlying
// network or stream error.
type IoError struct {
	Inner error
}

func (e *IoError) Error() string { return fmt.Sprintf("smtp: i/o error: %v", e.Inner) }

func (e *IoError) Unwrap() error { return e.Inner }

// isFatal reports whether err should move the session to
// Disconnected. Command rejections and authentication failures leave
// the session usable; protocol, I/O, and cancellation errors do not.
func isFatal(err error) bool {
	switch err.(type) {
	case *ProtocolParseError, *UnexpectedDisconnectError, *CancelledError, *IoError:
		return true
	default:
		return false
	}
}
