package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Scram implements RFC 5802 SCRAM-SHA-1 / SCRAM-SHA-256 (RFC 7677),
// without channel binding.
type Scram struct {
	Username string
	Password string
	// HashName selects the mechanism variant: "SHA-1" or "SHA-256".
	HashName string

	step          int
	clientNonce   string
	clientFirstBare string
	serverSignature []byte
	done          bool
}

func (s *Scram) Name() string { return "SCRAM-" + s.HashName }

func (s *Scram) HasInitialResponse() bool     { return true }
func (s *Scram) IsAuthenticated() bool        { return s.done }
func (s *Scram) NegotiatedSecurityLayer() bool { return false }

func (s *Scram) newHash() func() hash.Hash {
	if s.HashName == "SHA-1" {
		return sha1.New
	}
	return sha256.New
}

func (s *Scram) Challenge(serverText []byte) ([]byte, error) {
	switch s.step {
	case 0:
		s.clientNonce = randomNonce()
		s.clientFirstBare = fmt.Sprintf("n=%s,r=%s", saslPrep(s.Username), s.clientNonce)
		s.step++
		return []byte("n,," + s.clientFirstBare), nil

	case 1:
		fields, err := parseScramFields(string(serverText))
		if err != nil {
			return nil, err
		}
		serverNonce := fields["r"]
		saltB64 := fields["s"]
		iterStr := fields["i"]
		if serverNonce == "" || saltB64 == "" || iterStr == "" || !strings.HasPrefix(serverNonce, s.clientNonce) {
			return nil, fmt.Errorf("sasl: SCRAM server-first-message is malformed")
		}
		salt, err := base64.StdEncoding.DecodeString(saltB64)
		if err != nil {
			return nil, fmt.Errorf("sasl: SCRAM salt is not valid base64: %w", err)
		}
		iterations, err := strconv.Atoi(iterStr)
		if err != nil || iterations <= 0 {
			return nil, fmt.Errorf("sasl: SCRAM iteration count is invalid")
		}

		saltedPassword := pbkdf2.Key([]byte(s.Password), salt, iterations, hashSize(s.HashName), s.newHash())
		clientKey := hmacSum(s.newHash(), saltedPassword, []byte("Client Key"))
		storedKey := hashSum(s.newHash(), clientKey)

		channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
		clientFinalWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)
		authMessage := s.clientFirstBare + "," + string(serverText) + "," + clientFinalWithoutProof

		clientSignature := hmacSum(s.newHash(), storedKey, []byte(authMessage))
		clientProof := xorBytes(clientKey, clientSignature)

		serverKey := hmacSum(s.newHash(), saltedPassword, []byte("Server Key"))
		s.serverSignature = hmacSum(s.newHash(), serverKey, []byte(authMessage))

		s.step++
		return []byte(fmt.Sprintf("%s,p=%s", clientFinalWithoutProof, base64.StdEncoding.EncodeToString(clientProof))), nil

	case 2:
		fields, err := parseScramFields(string(serverText))
		if err != nil {
			return nil, err
		}
		gotSig, err := base64.StdEncoding.DecodeString(fields["v"])
		if err != nil || !hmac.Equal(gotSig, s.serverSignature) {
			return nil, fmt.Errorf("sasl: SCRAM server signature does not match")
		}
		s.done = true
		return nil, nil

	default:
		return nil, fmt.Errorf("sasl: SCRAM mechanism received an unexpected extra challenge")
	}
}

func hashSize(name string) int {
	if name == "SHA-1" {
		return sha1.Size
	}
	return sha256.Size
}

func hmacSum(h func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(h, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hashSum(h func() hash.Hash, data []byte) []byte {
	sum := h()
	sum.Write(data)
	return sum.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func randomNonce() string {
	buf := make([]byte, 18)
	_, _ = rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// saslPrep applies the minimal SCRAM username escaping (RFC 5802 §5.1):
// ',' and '=' are escaped as "=2C" and "=3D". Full SASLprep
// normalization is out of scope; ASCII usernames are the common case.
func saslPrep(username string) string {
	r := strings.NewReplacer("=", "=3D", ",", "=2C")
	return r.Replace(username)
}

func parseScramFields(s string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, fmt.Errorf("sasl: malformed SCRAM attribute %q", part)
		}
		fields[part[:eq]] = part[eq+1:]
	}
	return fields, nil
}
