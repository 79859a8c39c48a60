package sasl

import "fmt"

// XOAuth2 implements Google/Microsoft's XOAUTH2 mechanism: a single
// initial response carrying a bearer token, with no challenge/response
// round trip on success. OAuth-family mechanisms are excluded from
// DefaultRanking; callers that hold a token construct this type and
// pass it to the session deliberately.
type XOAuth2 struct {
	Username string
	Token    string

	done bool
}

func (x *XOAuth2) Name() string                 { return "XOAUTH2" }
func (x *XOAuth2) HasInitialResponse() bool     { return true }
func (x *XOAuth2) IsAuthenticated() bool        { return x.done }
func (x *XOAuth2) NegotiatedSecurityLayer() bool { return false }

func (x *XOAuth2) Challenge(serverText []byte) ([]byte, error) {
	if x.done {
		return nil, fmt.Errorf("sasl: XOAUTH2 does not expect a second challenge")
	}
	x.done = true
	return []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", x.Username, x.Token)), nil
}
