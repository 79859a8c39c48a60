package smtp

import (
	"context"
	"errors"
	"strings"
)

// Noop sends NOOP and requires Ok (250).
func (s *Session) Noop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)
	if err := s.requireConnected(); err != nil {
		return err
	}
	resp, err := s.stream.sendCommand(ctx, []byte("NOOP\r\n"))
	if err != nil {
		return s.fail(err)
	}
	if resp.Code != 250 {
		return &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus}
	}
	return nil
}

// QuitAndDisconnect sends QUIT on a best-effort basis: any error from
// cancellation, protocol parsing, I/O, or a non-221 reply is swallowed.
// The session is always Disconnected on return. graceful controls only
// whether QUIT is attempted at all; the connection is closed either
// way.
func (s *Session) QuitAndDisconnect(ctx context.Context, graceful bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)
	if graceful && s.state != Disconnected {
		_, _ = s.stream.sendCommand(ctx, []byte("QUIT\r\n"))
	}
	s.disconnectLocked()
}

// Expand sends EXPN <alias> and parses the accepted reply's text into
// one mailbox address per line.
func (s *Session) Expand(ctx context.Context, alias string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	if err := rejectCRLF(alias); err != nil {
		return nil, err
	}
	resp, err := s.stream.sendCommand(ctx, []byte("EXPN "+alias+"\r\n"))
	if err != nil {
		return nil, s.fail(err)
	}
	if resp.Code == 530 {
		return nil, &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	}
	if resp.Code != 250 {
		return nil, &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus}
	}
	return resp.Lines(), nil
}

// Verify sends VRFY <address> and, on a 250 reply, returns the reply
// text as the server sent it; the text is not parsed or validated as a
// mailbox address.
func (s *Session) Verify(ctx context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)
	if err := s.requireConnected(); err != nil {
		return "", err
	}
	if err := rejectCRLF(address); err != nil {
		return "", err
	}
	resp, err := s.stream.sendCommand(ctx, []byte("VRFY "+address+"\r\n"))
	if err != nil {
		return "", s.fail(err)
	}
	if resp.Code == 530 {
		return "", &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	}
	if resp.Code != 250 {
		return "", &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus}
	}
	return resp.Text, nil
}

// rejectCRLF validates an EXPN/VRFY argument before any I/O takes
// place. It is a plain argument-validation error, not one of the
// wire-protocol error kinds: it never reaches the stream, so it
// carries no fatality and the session is left exactly as it was.
func rejectCRLF(arg string) error {
	if strings.ContainsAny(arg, "\r\n") {
		return errors.New("smtp: argument must not contain CR or LF")
	}
	return nil
}
