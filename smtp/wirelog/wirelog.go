// Package wirelog provides a smtp.ProtocolLogger that mirrors the raw
// protocol exchange into a lalog.Logger, redacting the secret portions
// of AUTH exchanges with smtp/secretdetector, and retaining the most
// recent wire bytes in a lalog.ByteLogWriter for post-mortem retrieval.
package wirelog

import (
	"bytes"
	"sync"

	"github.com/submitmail/smtpsubmit/lalog"
	"github.com/submitmail/smtpsubmit/smtp/secretdetector"
)

const redactedPlaceholder = "<redacted>"

// Logger mirrors protocol traffic into log lines and a bounded
// retention buffer. One Logger belongs to one session; its line
// reassembly and redaction state are not meant to be shared.
type Logger struct {
	Log *lalog.Logger

	mutex    sync.Mutex
	detector *secretdetector.Detector
	retained *lalog.ByteLogWriter
	// partial client bytes carried over until a full line arrives, so
	// the redaction state machine always sees whole lines.
	clientRemainder []byte
}

// New constructs a wire logger writing through log and retaining up to
// retainBytes of redacted traffic.
func New(log *lalog.Logger, retainBytes int) *Logger {
	return &Logger{
		Log:      log,
		detector: secretdetector.New(),
		retained: lalog.NewByteLogWriter(lalog.DiscardCloser, retainBytes),
	}
}

// LogClient records bytes the client wrote, redacting AUTH secrets.
func (w *Logger) LogClient(b []byte) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.clientRemainder = append(w.clientRemainder, b...)
	for {
		nl := bytes.IndexByte(w.clientRemainder, '\n')
		if nl < 0 {
			return
		}
		line := w.clientRemainder[:nl]
		w.clientRemainder = w.clientRemainder[nl+1:]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		w.emitClientLine(line)
	}
}

func (w *Logger) emitClientLine(line []byte) {
	start, end := w.detector.FeedClientLine(line)
	display := line
	if end > start {
		display = make([]byte, 0, len(line))
		display = append(display, line[:start]...)
		display = append(display, redactedPlaceholder...)
		display = append(display, line[end:]...)
	}
	_, _ = w.retained.Write([]byte("C: " + string(display) + "\r\n"))
	w.Log.Info("client", nil, "C: %s", string(display))
}

// LogServer records bytes the server wrote. Server lines are never
// secret; a final (non-334) reply also terminates any open AUTH
// exchange in the redaction state machine.
func (w *Logger) LogServer(b []byte) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_, _ = w.retained.Write(b)
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		if len(line) >= 4 && line[3] == ' ' && !bytes.HasPrefix(line, []byte("334 ")) {
			w.detector.ExchangeTerminated()
		}
		w.Log.Info("server", nil, "S: %s", string(line))
	}
}

// LogConnect records the dial target.
func (w *Logger) LogConnect(uri string) {
	w.Log.Info("connect", nil, "connected to %s", uri)
}

// Retrieve returns a copy of the most recent redacted wire bytes, for
// inclusion in error reports. asciiOnly replaces non-printable bytes.
func (w *Logger) Retrieve(asciiOnly bool) []byte {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.retained.Retrieve(asciiOnly)
}
