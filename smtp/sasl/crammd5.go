package sasl

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// CramMD5 implements RFC 2195 CRAM-MD5: the server sends a challenge
// string, the client replies "username hex(hmac-md5(challenge, secret))".
type CramMD5 struct {
	Username string
	Password string

	done bool
}

func (c *CramMD5) Name() string                 { return "CRAM-MD5" }
func (c *CramMD5) HasInitialResponse() bool     { return false }
func (c *CramMD5) IsAuthenticated() bool        { return c.done }
func (c *CramMD5) NegotiatedSecurityLayer() bool { return false }

func (c *CramMD5) Challenge(serverText []byte) ([]byte, error) {
	if c.done || serverText == nil {
		return nil, fmt.Errorf("sasl: CRAM-MD5 expects exactly one server challenge")
	}
	mac := hmac.New(md5.New, []byte(c.Password))
	mac.Write(serverText)
	digest := mac.Sum(nil)
	c.done = true
	return []byte(fmt.Sprintf("%s %s", c.Username, hex.EncodeToString(digest))), nil
}
