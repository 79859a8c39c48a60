package wirelog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/submitmail/smtpsubmit/lalog"
)

func newTestLogger() *Logger {
	return New(&lalog.Logger{ComponentName: "wirelog-test"}, 4096)
}

func TestRedactsInitialResponseOnAuthLine(t *testing.T) {
	w := newTestLogger()
	w.LogClient([]byte("AUTH PLAIN AHVzZXIAcGFzcw==\r\n"))
	got := string(w.Retrieve(true))
	require.Contains(t, got, "AUTH PLAIN <redacted>")
	require.NotContains(t, got, "AHVzZXIAcGFzcw==")
}

func TestRedactsChallengeResponses(t *testing.T) {
	w := newTestLogger()
	w.LogClient([]byte("AUTH LOGIN\r\n"))
	w.LogServer([]byte("334 VXNlcm5hbWU6\r\n"))
	w.LogClient([]byte("dXNlcg==\r\n"))
	w.LogServer([]byte("334 UGFzc3dvcmQ6\r\n"))
	w.LogClient([]byte("cGFzcw==\r\n"))
	w.LogServer([]byte("235 ok\r\n"))
	// the exchange terminated; subsequent commands appear in clear
	w.LogClient([]byte("MAIL FROM:<a@x>\r\n"))

	got := string(w.Retrieve(true))
	require.NotContains(t, got, "dXNlcg==")
	require.NotContains(t, got, "cGFzcw==")
	require.Contains(t, got, "MAIL FROM:<a@x>")
	require.Equal(t, 2, strings.Count(got, "C: <redacted>"))
}

func TestNonAuthTrafficPassesThrough(t *testing.T) {
	w := newTestLogger()
	w.LogClient([]byte("EHLO client.example\r\n"))
	w.LogServer([]byte("250-srv\r\n250 PIPELINING\r\n"))
	got := string(w.Retrieve(true))
	require.Contains(t, got, "C: EHLO client.example")
	require.Contains(t, got, "250 PIPELINING")
}

func TestClientLineReassemblyAcrossWrites(t *testing.T) {
	w := newTestLogger()
	w.LogClient([]byte("AUTH PLAIN "))
	w.LogClient([]byte("c2VjcmV0\r"))
	w.LogClient([]byte("\n"))
	got := string(w.Retrieve(true))
	require.NotContains(t, got, "c2VjcmV0")
	require.Contains(t, got, "<redacted>")
}
