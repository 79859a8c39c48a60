package smtp

import (
	"context"
	"fmt"
	"net"
)

// localID computes the EHLO/HELO argument: the configured LocalName,
// or an IP-literal form of the connection's local endpoint, or the
// loopback literal as a last resort.
func localID(cfg Config, conn net.Conn) string {
	if cfg.LocalName != "" {
		return cfg.LocalName
	}
	addr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok || addr.IP == nil {
		return "[127.0.0.1]"
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		return fmt.Sprintf("[%s]", ip4.String())
	}
	return fmt.Sprintf("[IPv6:%s]", addr.IP.String())
}

// ehlo issues EHLO, falling back to HELO, and installs the resulting
// ExtensionSet (or an empty one for a bare HELO success).
// authenticatedBefore tolerates servers that 503 a post-auth EHLO,
// keeping the previous capability set.
func (s *Session) ehlo(ctx context.Context, authenticatedBefore bool) error {
	id := localID(s.cfg, s.conn)
	resp, err := s.stream.sendCommand(ctx, []byte("EHLO "+id+"\r\n"))
	if err != nil {
		return s.fail(err)
	}
	switch {
	case resp.Code == 250:
		s.caps = ParseEHLO(resp.Lines())
		return nil
	case resp.Code == 503 && authenticatedBefore:
		return nil
	}

	resp, err = s.stream.sendCommand(ctx, []byte("HELO "+id+"\r\n"))
	if err != nil {
		return s.fail(err)
	}
	if resp.Code != 250 {
		return &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus}
	}
	s.caps = NewExtensionSet()
	return nil
}
