package sasl

import "github.com/submitmail/smtpsubmit/smtp"

// DefaultRanking lists credential-based mechanism names from strongest
// to weakest. OAuth-family mechanisms are deliberately absent; callers
// that want XOAUTH2 attempted must add it to their own
// smtp.Credentials.Ranked explicitly.
var DefaultRanking = []string{
	"SCRAM-SHA-256",
	"SCRAM-SHA-1",
	"CRAM-MD5",
	"LOGIN",
	"PLAIN",
}

// PasswordCredentials is a convenience factory for the common case of
// authenticating with a single username/password pair: it builds
// whichever of DefaultRanking's mechanisms the caller names.
type PasswordCredentials struct {
	Username string
	Password string
}

// Build constructs the named mechanism, or (nil, false) if name is not
// one PasswordCredentials knows how to drive.
func (p PasswordCredentials) Build(name string) (smtp.SaslMechanism, bool) {
	switch name {
	case "PLAIN":
		return &Plain{Username: p.Username, Password: p.Password}, true
	case "LOGIN":
		return &Login{Username: p.Username, Password: p.Password}, true
	case "CRAM-MD5":
		return &CramMD5{Username: p.Username, Password: p.Password}, true
	case "SCRAM-SHA-1":
		return &Scram{Username: p.Username, Password: p.Password, HashName: "SHA-1"}, true
	case "SCRAM-SHA-256":
		return &Scram{Username: p.Username, Password: p.Password, HashName: "SHA-256"}, true
	default:
		return nil, false
	}
}
