// Package tlsdial provides the default smtp.SecureStreamFactory,
// backed by crypto/tls.
package tlsdial

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/submitmail/smtpsubmit/smtp"
)

// Factory is a smtp.SecureStreamFactory backed by crypto/tls.Client.
type Factory struct {
	// MinVersion defaults to tls.VersionTLS12 when zero.
	MinVersion uint16
	// RootCAs overrides the platform trust store when non-nil.
	RootCAs *x509.CertPool
	// InsecureSkipVerify disables certificate chain and hostname
	// verification. crypto/tls then passes no verified chains, so when the
	// caller also supplies a CertificateValidator every handshake is
	// rejected. Intended for test harnesses only.
	InsecureSkipVerify bool
}

// Upgrade implements smtp.SecureStreamFactory.
func (f Factory) Upgrade(ctx context.Context, conn net.Conn, serverName string, verify smtp.CertificateValidator) (net.Conn, error) {
	cfg := &tls.Config{
		ServerName:         serverName,
		MinVersion:         f.MinVersion,
		RootCAs:            f.RootCAs,
		InsecureSkipVerify: f.InsecureSkipVerify,
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if verify != nil {
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, chains [][]*x509.Certificate) error {
			if len(chains) == 0 || len(chains[0]) == 0 {
				return fmt.Errorf("tlsdial: no verified chain available for custom validation")
			}
			return verify(chains[0][0], chains)
		}
	}

	tlsConn := tls.Client(conn, cfg)
	done := make(chan error, 1)
	go func() { done <- tlsConn.Handshake() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return tlsConn, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	}
}
