/*
smtp-submit connects to an SMTP submission server, optionally negotiates
TLS and SASL authentication, and submits a single pre-rendered MIME
message read from standard input or a file. It exercises the full
engine: capability negotiation, pipelining, DSN parameters, and the
DATA/BDAT body phase.

Example:

	smtp-submit -host smtp.example.com -port 587 -mode starttls-required \
	    -user alice -pass secret -from alice@example.com \
	    -to bob@example.com,carol@example.com < message.eml
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/submitmail/smtpsubmit/lalog"
	"github.com/submitmail/smtpsubmit/smtp"
	"github.com/submitmail/smtpsubmit/smtp/message"
	"github.com/submitmail/smtpsubmit/smtp/sasl"
	"github.com/submitmail/smtpsubmit/smtp/tlsdial"
	"github.com/submitmail/smtpsubmit/smtp/wirelog"
)

var logger = &lalog.Logger{ComponentName: "smtp-submit", ComponentID: []lalog.LoggerIDField{{Key: "PID", Value: os.Getpid()}}}

func main() {
	var (
		host      string
		port      int
		modeName  string
		localName string
		from      string
		toList    string
		user      string
		pass      string
		envelopeID string
		utf8      bool
		insecure  bool
		file      string
		timeout   int
		traceWire bool
	)
	flag.StringVar(&host, "host", "", "SMTP server host name")
	flag.IntVar(&port, "port", 587, "SMTP server port")
	flag.StringVar(&modeName, "mode", "starttls", "TLS mode: plain, ssl, starttls, or starttls-required")
	flag.StringVar(&localName, "localname", "", "domain to present in EHLO (defaults to an IP literal)")
	flag.StringVar(&from, "from", "", "envelope sender address")
	flag.StringVar(&toList, "to", "", "comma-separated envelope recipient addresses")
	flag.StringVar(&user, "user", "", "SASL user name (authentication is skipped when empty)")
	flag.StringVar(&pass, "pass", "", "SASL password")
	flag.StringVar(&envelopeID, "envid", "", "DSN envelope identifier")
	flag.BoolVar(&utf8, "utf8", false, "request SMTPUTF8 for internationalized addresses")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification (testing only)")
	flag.StringVar(&file, "file", "", "read the message from this file instead of standard input")
	flag.IntVar(&timeout, "timeout", 60, "overall timeout in seconds")
	flag.BoolVar(&traceWire, "trace", false, "log the protocol exchange (AUTH secrets are redacted)")
	flag.Parse()

	if host == "" || from == "" || toList == "" {
		flag.Usage()
		os.Exit(2)
	}
	mode, err := parseMode(modeName)
	if err != nil {
		logger.Abort("main", err, "invalid -mode")
		return
	}

	content, err := readMessage(file)
	if err != nil {
		logger.Abort("main", err, "failed to read message content")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	conn, err := new(net.Dialer).DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		logger.Abort("main", err, "failed to connect to %s:%d", host, port)
		return
	}

	cfg := smtp.Config{
		LocalName:    localName,
		SecureStream: tlsdial.Factory{InsecureSkipVerify: insecure},
	}
	if traceWire {
		cfg.Logger = wirelog.New(logger, 64*1024)
	}
	sess, err := smtp.Connect(ctx, conn, host, mode, cfg)
	if err != nil {
		logger.Abort("main", err, "SMTP handshake with %s failed", host)
		return
	}
	defer sess.QuitAndDisconnect(ctx, true)

	if user != "" {
		creds := smtp.Credentials{
			Ranked: sasl.DefaultRanking,
			Build:  sasl.PasswordCredentials{Username: user, Password: pass}.Build,
		}
		if err := sess.AuthenticateWithCredentials(ctx, creds); err != nil {
			logger.Abort("main", err, "authentication failed")
			return
		}
	}

	recipients := make([]smtp.Recipient, 0, 4)
	for _, addr := range strings.Split(toList, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			recipients = append(recipients, smtp.Recipient{Mailbox: addr})
		}
	}

	reply, err := sess.Send(ctx, smtp.SendOptions{
		Sender:     from,
		Recipients: recipients,
		EnvelopeID: envelopeID,
		UTF8:       utf8,
	}, message.NewBuffer(content))
	if err != nil {
		logger.Abort("main", err, "message submission failed")
		return
	}
	logger.Info("main", nil, "message accepted: %s", reply)
}

func parseMode(name string) (smtp.ConnectMode, error) {
	switch strings.ToLower(name) {
	case "plain":
		return smtp.ModePlain, nil
	case "ssl":
		return smtp.ModeSSLOnConnect, nil
	case "starttls":
		return smtp.ModeStartTLSIfAvailable, nil
	case "starttls-required":
		return smtp.ModeStartTLSRequired, nil
	default:
		return 0, fmt.Errorf("unrecognized mode %q", name)
	}
}

func readMessage(file string) ([]byte, error) {
	if file == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}
