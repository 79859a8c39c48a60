package smtp

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	inputBlockSize  = 4096
	inputBufferSize = inputBlockSize + 256 // pad so a sentinel byte always fits past end
	outputBlockSize = 4096
)

// framingStream translates the connection's byte stream into Response
// values and buffers outgoing command lines for pipelined flushing. It
// exclusively owns conn and both buffers for the lifetime of one
// connection; Session owns exactly one framingStream.
type framingStream struct {
	conn net.Conn
	log  ProtocolLogger

	in        [inputBufferSize]byte
	cursor    int
	end       int
	lastResp  *Response

	out    [outputBlockSize]byte
	outLen int
}

func newFramingStream(conn net.Conn, log ProtocolLogger) *framingStream {
	return &framingStream{conn: conn, log: log}
}

// rebind swaps the underlying connection in place, used after a STARTTLS
// upgrade; the buffers are reset since no bytes from the plaintext
// connection may leak past the upgrade boundary.
func (f *framingStream) rebind(conn net.Conn) {
	f.conn = conn
	f.cursor, f.end, f.outLen = 0, 0, 0
	f.lastResp = nil
}

// lastResponse returns the most recently decoded response, used to enrich
// UnexpectedDisconnectError.
func (f *framingStream) lastResponse() *Response { return f.lastResp }

// queueCommand appends a command line (including its trailing "\r\n") to
// the output buffer. An oversized line goes straight to the stream in
// block-sized chunks, flushing queued commands first so no command is
// reordered.
func (f *framingStream) queueCommand(ctx context.Context, line []byte) error {
	if f.outLen == 0 && len(line) >= outputBlockSize {
		return f.writeDirect(ctx, line)
	}
	if f.outLen+len(line) > outputBlockSize {
		if err := f.flush(ctx); err != nil {
			return err
		}
		if len(line) >= outputBlockSize {
			return f.writeDirect(ctx, line)
		}
	}
	f.outLen += copy(f.out[f.outLen:], line)
	return nil
}

// writeDirect writes a command too large for the output buffer straight
// to the stream in block-sized chunks.
func (f *framingStream) writeDirect(ctx context.Context, line []byte) error {
	for len(line) > 0 {
		n := len(line)
		if n > outputBlockSize {
			n = outputBlockSize
		}
		if err := f.writeAll(ctx, line[:n]); err != nil {
			return err
		}
		line = line[n:]
	}
	return nil
}

// flush writes the buffered output and resets it.
func (f *framingStream) flush(ctx context.Context) error {
	if f.outLen == 0 {
		return nil
	}
	err := f.writeAll(ctx, f.out[:f.outLen])
	// A partial write followed by an error leaves the session in a
	// state the caller must treat as Disconnected; the buffer is
	// cleared either way since retrying a half-sent command is unsafe.
	f.outLen = 0
	return err
}

func (f *framingStream) writeAll(ctx context.Context, b []byte) error {
	if err := f.applyDeadline(ctx); err != nil {
		return err
	}
	if f.log != nil {
		f.log.LogClient(b)
	}
	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return &CancelledError{Inner: err}
		}
		n, err := f.conn.Write(b)
		if err != nil {
			return &IoError{Inner: err}
		}
		b = b[n:]
	}
	return nil
}

// sendCommand is queueCommand + flush + readResponse, the convenience
// path used whenever PIPELINING is not in effect.
func (f *framingStream) sendCommand(ctx context.Context, line []byte) (Response, error) {
	if err := f.queueCommand(ctx, line); err != nil {
		return Response{}, err
	}
	if err := f.flush(ctx); err != nil {
		return Response{}, err
	}
	return f.readResponse(ctx)
}

// readResponse reads and decodes one (possibly multi-line) SMTP reply.
func (f *framingStream) readResponse(ctx context.Context) (Response, error) {
	var code uint16
	var lines []string
	for {
		line, err := f.readLine(ctx)
		if err != nil {
			return Response{}, err
		}
		lineCode, sep, payload, perr := parseResponseLine(line)
		if perr != nil {
			return Response{}, f.protocolError(perr.Error())
		}
		if len(lines) == 0 {
			code = lineCode
		} else if lineCode != code {
			return Response{}, f.protocolError("continuation line status code does not match first line")
		}
		lines = append(lines, payload)
		if sep == ' ' || sep == 0 {
			break
		}
	}
	text := joinResponseLines(lines)
	resp := Response{Code: code, Text: text}
	f.lastResp = &resp
	return resp, nil
}

func (f *framingStream) protocolError(details string) error {
	return &ProtocolParseError{Details: details, LastResponse: f.lastResp}
}

// readLine returns the next line up to (but excluding) its terminating
// CRLF or LF, compacting and refilling the input buffer as needed.
func (f *framingStream) readLine(ctx context.Context) ([]byte, error) {
	for {
		if idx := indexLF(f.in[f.cursor:f.end]); idx >= 0 {
			line := f.in[f.cursor : f.cursor+idx]
			f.cursor += idx + 1
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, nil
		}
		if err := f.fill(ctx); err != nil {
			return nil, err
		}
	}
}

// indexLF is a plain byte search for '\n' within the unconsumed
// region. The sentinel byte written in fill guarantees a lower-level
// scan (e.g. an unrolled loop) would never read past a valid array
// index; with a bounded search like this one the sentinel has no
// observable effect.
func indexLF(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}

// fill compacts unconsumed bytes to the buffer start if needed, issues
// one bounded read, and writes the sentinel past the new end.
func (f *framingStream) fill(ctx context.Context) error {
	if f.cursor > 0 {
		n := copy(f.in[:], f.in[f.cursor:f.end])
		f.cursor = 0
		f.end = n
	}
	if f.end >= inputBlockSize {
		return f.protocolError("response line exceeds maximum buffered length")
	}
	if err := f.applyDeadline(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &CancelledError{Inner: err}
	}
	n, err := f.conn.Read(f.in[f.end:inputBlockSize])
	if n > 0 {
		if f.log != nil {
			f.log.LogServer(f.in[f.end : f.end+n])
		}
		f.end += n
		f.in[f.end] = '\n' // sentinel, one past end
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &UnexpectedDisconnectError{LastResponse: f.lastResp}
		}
		return &IoError{Inner: err}
	}
	if n == 0 {
		return &UnexpectedDisconnectError{LastResponse: f.lastResp}
	}
	return nil
}

func (f *framingStream) applyDeadline(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		return f.conn.SetDeadline(dl)
	}
	return f.conn.SetDeadline(time.Time{})
}

// parseResponseLine splits one decoded line into its status code,
// separator byte ('-' for continuation, ' ' or 0 for final), and text
// payload. The code must be exactly three ASCII digits and at least
// 100; a terminator-only line (code with no separator) is accepted.
func parseResponseLine(raw []byte) (code uint16, sep byte, payload string, err error) {
	text := decodeResponseBytes(raw)
	if len(text) < 3 {
		return 0, 0, "", errors.New("response line shorter than a status code")
	}
	for i := 0; i < 3; i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, 0, "", errors.New("response line does not begin with a three-digit code")
		}
		code = code*10 + uint16(text[i]-'0')
	}
	if code < 100 {
		return 0, 0, "", errors.New("response status code below 100")
	}
	if len(text) == 3 {
		return code, 0, "", nil
	}
	switch text[3] {
	case '-':
		return code, '-', text[4:], nil
	case ' ':
		return code, ' ', text[4:], nil
	default:
		return 0, 0, "", errors.New("malformed separator after status code")
	}
}

func joinResponseLines(lines []string) string {
	total := 0
	for i, l := range lines {
		total += len(l)
		if i > 0 {
			total++
		}
	}
	buf := make([]byte, 0, total)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

// decodeResponseBytes decodes a response line as UTF-8, falling back
// to ISO-8859-1 when the bytes are not valid UTF-8, so a response
// decode never fails on non-ASCII bytes.
func decodeResponseBytes(b []byte) string {
	if isValidUTF8(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO-8859-1 maps every byte value; this path is unreachable in
		// practice but falls back to a lossy direct cast rather than
		// erroring, so a response decode never fails.
		return string(b)
	}
	return string(out)
}

func isValidUTF8(b []byte) bool { return utf8.Valid(b) }
