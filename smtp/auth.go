package smtp

import (
	"context"
	"encoding/base64"
)

// Credentials selects mechanisms automatically from the server's
// advertised list.
type Credentials struct {
	// Build constructs a SaslMechanism for the named advertised
	// mechanism, or returns (nil, false) if these credentials cannot
	// drive that mechanism (e.g. no OAuth token available for XOAUTH2).
	Build func(mechanismName string) (SaslMechanism, bool)

	// Ranked lists mechanism names from strongest to weakest; only
	// those also present in the server's advertised set are attempted,
	// in this order. OAuth-family mechanisms are attempted only when
	// explicitly listed here (see sasl.DefaultRanking).
	Ranked []string
}

// Authenticate runs one SASL exchange using a specific mechanism
// instance.
func (s *Session) Authenticate(ctx context.Context, mech SaslMechanism) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)

	if err := s.requireConnected(); err != nil {
		return err
	}
	if !s.caps.Has(ExtAuth) {
		return &FeatureNotSupportedError{Feature: "AUTH"}
	}
	return s.authenticateOne(ctx, mech)
}

// AuthenticateWithCredentials iterates Credentials.Ranked, attempting
// each advertised, constructible mechanism until one succeeds.
func (s *Session) AuthenticateWithCredentials(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)

	if err := s.requireConnected(); err != nil {
		return err
	}
	if !s.caps.Has(ExtAuth) {
		return &FeatureNotSupportedError{Feature: "AUTH"}
	}

	var lastErr error
	attempted := false
	for _, name := range creds.Ranked {
		if !s.caps.SupportsMechanism(name) {
			continue
		}
		mech, ok := creds.Build(name)
		if !ok {
			continue
		}
		attempted = true
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.AuthAttempted(name)
		}
		err := s.authenticateOne(ctx, mech)
		if err == nil {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.AuthSucceeded(name)
			}
			return nil
		}
		if isFatal(err) {
			return err
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.AuthFailed(name)
		}
		lastErr = err
	}
	if !attempted {
		return &NoCompatibleMechanismError{}
	}
	return lastErr
}

// authenticateOne runs one mechanism's AUTH exchange to completion. The
// caller holds s.mu.
func (s *Session) authenticateOne(ctx context.Context, mech SaslMechanism) error {
	var line []byte
	if mech.HasInitialResponse() {
		resp, err := mech.Challenge(nil)
		if err != nil {
			return &AuthenticationFailedError{Inner: err}
		}
		line = []byte("AUTH " + mech.Name() + " " + encodeChallenge(resp) + "\r\n")
	} else {
		line = []byte("AUTH " + mech.Name() + "\r\n")
	}

	resp, err := s.stream.sendCommand(ctx, line)
	if err != nil {
		return s.fail(err)
	}

	for resp.Code == 334 {
		serverText, decErr := base64.StdEncoding.DecodeString(resp.Text)
		if decErr != nil {
			serverText = []byte(resp.Text)
		}
		next, chErr := mech.Challenge(serverText)
		if chErr != nil {
			cancelResp, cancelErr := s.stream.sendCommand(ctx, []byte("\r\n"))
			if cancelErr != nil {
				return s.fail(cancelErr)
			}
			return &AuthenticationFailedError{Status: cancelResp.Code, Text: cancelResp.Text, Inner: chErr}
		}
		resp, err = s.stream.sendCommand(ctx, []byte(encodeChallenge(next)+"\r\n"))
		if err != nil {
			return s.fail(err)
		}
	}

	if resp.Code != 235 {
		// Covers 535 bad credentials and 534 mechanism-too-weak alike;
		// the credentials loop moves on to the next mechanism either
		// way.
		return &AuthenticationFailedError{Status: resp.Code, Text: resp.Text}
	}
	if mech.NegotiatedSecurityLayer() {
		if err := s.ehlo(ctx, true); err != nil {
			return err
		}
	}
	s.state = Authenticated
	if s.cfg.Hooks.OnAuthenticated != nil {
		s.cfg.Hooks.OnAuthenticated(resp.Text)
	}
	return nil
}

func encodeChallenge(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
