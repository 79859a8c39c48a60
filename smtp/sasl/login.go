package sasl

import "fmt"

// Login implements the legacy, widely-deployed LOGIN mechanism: the
// server prompts "Username:" then "Password:" (case and wording vary by
// server, so Login does not inspect the prompt text, only the sequence
// position) and the client answers with each credential in turn.
type Login struct {
	Username string
	Password string

	step int
}

func (l *Login) Name() string                 { return "LOGIN" }
func (l *Login) HasInitialResponse() bool     { return false }
func (l *Login) IsAuthenticated() bool        { return l.step >= 2 }
func (l *Login) NegotiatedSecurityLayer() bool { return false }

func (l *Login) Challenge(serverText []byte) ([]byte, error) {
	switch l.step {
	case 0:
		l.step++
		return []byte(l.Username), nil
	case 1:
		l.step++
		return []byte(l.Password), nil
	default:
		return nil, fmt.Errorf("sasl: LOGIN mechanism received an unexpected extra challenge")
	}
}
