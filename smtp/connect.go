package smtp

import (
	"context"
	"net"

	"github.com/submitmail/smtpsubmit/lalog"
)

// Connect negotiates an SMTP session over an already-established TCP
// (or other reliable stream) connection: it optionally upgrades to TLS
// up front, reads the greeting, performs the initial EHLO, and
// optionally performs STARTTLS plus a second EHLO.
//
// host is the name used both for TLS server-name indication and as the
// STARTTLS/SslOnConnect target; it is typically the value the caller
// resolved and dialed, not a literal IP.
func Connect(ctx context.Context, conn net.Conn, host string, mode ConnectMode, cfg Config) (*Session, error) {
	ctx = ctxOrBackground(ctx)
	if cfg.Metrics != nil {
		cfg.Metrics.ConnectAttempted()
	}
	if cfg.Logger != nil {
		cfg.Logger.LogConnect("smtp://" + host)
	}

	secure := false
	if mode == ModeSSLOnConnect {
		upgraded, err := requireSecureStream(cfg).Upgrade(ctx, conn, host, cfg.VerifyCertificate)
		if err != nil {
			_ = conn.Close()
			if cfg.Metrics != nil {
				cfg.Metrics.ConnectFailed()
			}
			return nil, &IoError{Inner: err}
		}
		conn = upgraded
		secure = true
	}

	s := newSession(conn, cfg)
	s.log = &lalog.Logger{ComponentName: "smtpclient", ComponentID: []lalog.LoggerIDField{{Key: "Remote", Value: host}}}
	s.state = Connected
	s.secure = secure

	if err := s.readGreeting(ctx); err != nil {
		s.disconnectLocked()
		if cfg.Metrics != nil {
			cfg.Metrics.ConnectFailed()
		}
		return nil, err
	}

	if err := s.ehlo(ctx, false); err != nil {
		s.disconnectLocked()
		if cfg.Metrics != nil {
			cfg.Metrics.ConnectFailed()
		}
		return nil, err
	}

	if mode == ModeStartTLSRequired && !s.caps.Has(ExtStartTLS) {
		s.disconnectLocked()
		if cfg.Metrics != nil {
			cfg.Metrics.ConnectFailed()
		}
		return nil, &FeatureNotSupportedError{Feature: "STARTTLS"}
	}

	if s.caps.Has(ExtStartTLS) && mode != ModePlain && mode != ModeSSLOnConnect {
		if err := s.startTLS(ctx, host); err != nil {
			s.disconnectLocked()
			if cfg.Metrics != nil {
				cfg.Metrics.ConnectFailed()
			}
			return nil, err
		}
		if err := s.ehlo(ctx, false); err != nil {
			s.disconnectLocked()
			if cfg.Metrics != nil {
				cfg.Metrics.ConnectFailed()
			}
			return nil, err
		}
	}

	if cfg.Metrics != nil {
		cfg.Metrics.ConnectSucceeded(s.secure)
	}
	return s, nil
}

func requireSecureStream(cfg Config) SecureStreamFactory {
	if cfg.SecureStream == nil {
		panic("smtp: Config.SecureStream must be set to use SSL-on-connect or STARTTLS")
	}
	return cfg.SecureStream
}

// readGreeting reads the server banner and requires ServiceReady (220).
func (s *Session) readGreeting(ctx context.Context) error {
	resp, err := s.stream.readResponse(ctx)
	if err != nil {
		return s.fail(err)
	}
	if resp.Code != 220 {
		return s.fail(&CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus})
	}
	return nil
}

// startTLS sends STARTTLS, requires ServiceReady, and upgrades the
// stream in place, discarding any buffered plaintext.
func (s *Session) startTLS(ctx context.Context, host string) error {
	resp, err := s.stream.sendCommand(ctx, []byte("STARTTLS\r\n"))
	if err != nil {
		return s.fail(err)
	}
	if resp.Code != 220 {
		return s.fail(&CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus})
	}
	upgraded, err := requireSecureStream(s.cfg).Upgrade(ctx, s.conn, host, s.cfg.VerifyCertificate)
	if err != nil {
		return s.fail(&IoError{Inner: err})
	}
	s.conn = upgraded
	s.stream.rebind(upgraded)
	s.secure = true
	return nil
}
