// Package message provides a minimal, byte-buffer-backed
// smtp.MessageFormatter: it lets a caller hand the engine a
// pre-rendered MIME message without requiring a MIME library. It
// performs no encoding; it only measures and copies bytes the caller
// already produced.
package message

import (
	"bytes"
	"io"

	"github.com/submitmail/smtpsubmit/smtp"
)

// Buffer is a smtp.MessageFormatter over an in-memory byte slice.
// Requirement reports the encoding the content actually needs (e.g.
// because it contains bytes outside the 7-bit ASCII range); callers
// that already know this can set it directly instead of relying on the
// byte scan NewBuffer performs.
type Buffer struct {
	Content     []byte
	Requirement smtp.EncodingRequirement

	constraint smtp.BodyConstraint
}

// NewBuffer wraps content, scanning it once to detect 8-bit or binary
// (NUL byte) content so Requirement need not be set by hand.
func NewBuffer(content []byte) *Buffer {
	b := &Buffer{Content: content}
	b.Requirement = detectRequirement(content)
	return b
}

func detectRequirement(content []byte) smtp.EncodingRequirement {
	req := smtp.EncodingNone
	for _, c := range content {
		if c == 0 {
			return smtp.EncodingBinaryNeeded
		}
		if c > 127 {
			req = smtp.Encoding8BitNeeded
		}
	}
	return req
}

// Prepare records the constraint the caller resolved from the session's
// capabilities; Buffer does not transform Content to honor it (there is
// no re-encoding without a MIME layer), it only remembers it for
// Measure/WriteTo bookkeeping.
func (b *Buffer) Prepare(constraint smtp.BodyConstraint) { b.constraint = constraint }

// VisitEncoding reports the requirement detected at construction time.
func (b *Buffer) VisitEncoding() smtp.EncodingRequirement { return b.Requirement }

// Measure returns the exact byte length of Content.
func (b *Buffer) Measure(opts smtp.WriteOptions) (int64, error) {
	return int64(len(b.Content)), nil
}

// WriteTo copies Content to w verbatim.
func (b *Buffer) WriteTo(opts smtp.WriteOptions, w io.Writer) error {
	_, err := io.Copy(w, bytes.NewReader(b.Content))
	return err
}
