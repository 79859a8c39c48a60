package smtp

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memConn is a net.Conn whose read side replays a fixed byte string and
// whose write side accumulates into a buffer, for parser tests that do
// not need a live peer.
type memConn struct {
	r *bytes.Reader
	w bytes.Buffer
}

func newMemConn(serverBytes string) *memConn {
	return &memConn{r: bytes.NewReader([]byte(serverBytes))}
}

func (c *memConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *memConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *memConn) Close() error                { return nil }
func (c *memConn) LocalAddr() net.Addr         { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *memConn) RemoteAddr() net.Addr        { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *memConn) SetDeadline(time.Time) error { return nil }
func (c *memConn) SetReadDeadline(time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(time.Time) error { return nil }

func readOne(t *testing.T, serverBytes string) (Response, error) {
	t.Helper()
	f := newFramingStream(newMemConn(serverBytes), nil)
	return f.readResponse(context.Background())
}

func TestReadResponseSingleLine(t *testing.T) {
	resp, err := readOne(t, "250 \r\n")
	require.NoError(t, err)
	require.Equal(t, Response{Code: 250, Text: ""}, resp)

	resp, err = readOne(t, "250 queued as 12345\r\n")
	require.NoError(t, err)
	require.Equal(t, Response{Code: 250, Text: "queued as 12345"}, resp)
}

func TestReadResponseTerminatorOnlyLine(t *testing.T) {
	resp, err := readOne(t, "220\r\n")
	require.NoError(t, err)
	require.Equal(t, Response{Code: 220, Text: ""}, resp)

	// bare LF, no CR
	resp, err = readOne(t, "220\n")
	require.NoError(t, err)
	require.Equal(t, uint16(220), resp.Code)
}

func TestReadResponseMultiLine(t *testing.T) {
	resp, err := readOne(t, "250-A\r\n250 B\r\n")
	require.NoError(t, err)
	require.Equal(t, Response{Code: 250, Text: "A\nB"}, resp)
	require.Equal(t, []string{"A", "B"}, resp.Lines())
}

func TestReadResponseCodeMismatch(t *testing.T) {
	_, err := readOne(t, "250-A\r\n251 B\r\n")
	var perr *ProtocolParseError
	require.ErrorAs(t, err, &perr)
}

func TestReadResponseMalformed(t *testing.T) {
	for _, in := range []string{
		"25x ok\r\n",   // non-digit in code
		"099 low\r\n",  // code below 100
		"250~ok\r\n",   // bad separator
		"25\r\n",       // too short
	} {
		_, err := readOne(t, in)
		var perr *ProtocolParseError
		require.ErrorAs(t, err, &perr, "input %q", in)
	}
}

func TestReadResponseLatin1Fallback(t *testing.T) {
	// 0xE9 is 'é' in ISO-8859-1 and invalid standalone UTF-8.
	resp, err := readOne(t, "250 caf\xe9\r\n")
	require.NoError(t, err)
	require.Equal(t, "café", resp.Text)

	// Valid UTF-8 passes through undisturbed.
	resp, err = readOne(t, "250 caf\xc3\xa9\r\n")
	require.NoError(t, err)
	require.Equal(t, "café", resp.Text)
}

func TestReadResponseEOFMidResponse(t *testing.T) {
	_, err := readOne(t, "220 he")
	var derr *UnexpectedDisconnectError
	require.ErrorAs(t, err, &derr)
	require.Nil(t, derr.LastResponse)
}

func TestReadResponseEOFRetainsLastResponse(t *testing.T) {
	f := newFramingStream(newMemConn("220 hello\r\n250-part"), nil)
	ctx := context.Background()
	resp, err := f.readResponse(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(220), resp.Code)

	_, err = f.readResponse(ctx)
	var derr *UnexpectedDisconnectError
	require.ErrorAs(t, err, &derr)
	require.NotNil(t, derr.LastResponse)
	require.Equal(t, uint16(220), derr.LastResponse.Code)
}

func TestReadResponseLineTooLong(t *testing.T) {
	_, err := readOne(t, "250 "+strings.Repeat("x", inputBlockSize)+"\r\n")
	var perr *ProtocolParseError
	require.ErrorAs(t, err, &perr)
}

func TestQueueCommandBuffersUntilFlush(t *testing.T) {
	conn := newMemConn("")
	f := newFramingStream(conn, nil)
	ctx := context.Background()

	require.NoError(t, f.queueCommand(ctx, []byte("MAIL FROM:<a@x>\r\n")))
	require.NoError(t, f.queueCommand(ctx, []byte("RCPT TO:<b@y>\r\n")))
	require.Equal(t, 0, conn.w.Len())

	require.NoError(t, f.flush(ctx))
	require.Equal(t, "MAIL FROM:<a@x>\r\nRCPT TO:<b@y>\r\n", conn.w.String())
}

func TestQueueCommandOverflowFlushesFirst(t *testing.T) {
	conn := newMemConn("")
	f := newFramingStream(conn, nil)
	ctx := context.Background()

	first := "MAIL FROM:<a@x>\r\n"
	require.NoError(t, f.queueCommand(ctx, []byte(first)))
	big := bytes.Repeat([]byte("b"), outputBlockSize-8)
	require.NoError(t, f.queueCommand(ctx, big))
	// The first command was flushed to make room; the second is queued.
	require.Equal(t, first, conn.w.String())
	require.NoError(t, f.flush(ctx))
	require.Equal(t, len(first)+len(big), conn.w.Len())
}

func TestQueueCommandOversizedWritesDirect(t *testing.T) {
	conn := newMemConn("")
	f := newFramingStream(conn, nil)
	ctx := context.Background()

	big := bytes.Repeat([]byte("b"), outputBlockSize*2+100)
	require.NoError(t, f.queueCommand(ctx, big))
	require.Equal(t, len(big), conn.w.Len())
}

func TestWriteCancellation(t *testing.T) {
	conn := newMemConn("")
	f := newFramingStream(conn, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.writeAll(ctx, []byte("NOOP\r\n"))
	var cerr *CancelledError
	require.ErrorAs(t, err, &cerr)
}

func TestSendCommandRoundTrip(t *testing.T) {
	conn := newMemConn("250 pong\r\n")
	f := newFramingStream(conn, nil)
	resp, err := f.sendCommand(context.Background(), []byte("NOOP\r\n"))
	require.NoError(t, err)
	require.Equal(t, "NOOP\r\n", conn.w.String())
	require.Equal(t, Response{Code: 250, Text: "pong"}, resp)
}
