package smtp

import (
	"context"
	"fmt"
	"strings"
)

// Recipient is one RCPT TO target within a SendOptions call.
type Recipient struct {
	Mailbox string
	Notify  []NotifyFlag
}

// SendOptions carries the envelope of one Send call.
type SendOptions struct {
	Sender     string
	Recipients []Recipient
	EnvelopeID string
	UTF8       bool
	Progress   ProgressSink
}

// recipientOutcome tracks one recipient's per-response classification
// while pipelined responses are drained in order.
type recipientOutcome struct {
	mailbox  string
	accepted bool
	err      error // *CommandFailedError or *NotAuthenticatedError
}

// Send submits one message: MAIL FROM, RCPT TO (one per recipient,
// deduplicated case-insensitively), and a DATA or BDAT body phase,
// returning the final server reply text on success. When the server
// advertises PIPELINING, MAIL FROM and every RCPT TO are flushed
// together before any of their responses is read.
func (s *Session) Send(ctx context.Context, opts SendOptions, formatter MessageFormatter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = ctxOrBackground(ctx)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SendAttempted()
	}

	text, err := s.send(ctx, opts, formatter)
	if err != nil {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SendFailed(failureKind(err))
		}
		return "", err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SendSucceeded()
	}
	return text, nil
}

func failureKind(err error) string {
	if cf, ok := err.(*CommandFailedError); ok {
		return cf.Kind.String()
	}
	switch err.(type) {
	case *AuthenticationFailedError:
		return "AuthenticationFailed"
	case *NotAuthenticatedError:
		return "NotAuthenticated"
	default:
		return "Other"
	}
}

func (s *Session) send(ctx context.Context, opts SendOptions, formatter MessageFormatter) (string, error) {
	if err := s.requireConnected(); err != nil {
		return "", err
	}
	if opts.Sender == "" {
		return "", &CommandFailedError{Kind: SenderNotAccepted, Text: "sender address is required"}
	}
	recipients := dedupeRecipients(opts.Recipients)
	if len(recipients) == 0 {
		return "", &CommandFailedError{Kind: RecipientNotAccepted, Text: "at least one recipient is required"}
	}

	constraint := ConstraintSevenBit
	switch {
	case s.caps.Has(ExtBinaryMime):
		constraint = ConstraintNone
	case s.caps.Has(ExtEightBitMime):
		constraint = ConstraintEightBit
	}
	formatter.Prepare(constraint)

	utf8 := opts.UTF8
	if utf8 && !s.caps.Has(ExtEightBitMime) {
		return "", &FeatureNotSupportedError{Feature: "8BITMIME"}
	}
	if utf8 && !s.caps.Has(ExtUTF8) {
		utf8 = false
	}

	writeOpts := WriteOptions{UTF8: utf8, Constraint: constraint}
	requirement := formatter.VisitEncoding()
	switch requirement {
	case EncodingBinaryNeeded:
		if !s.caps.Has(ExtBinaryMime) {
			return "", &FeatureNotSupportedError{Feature: "BINARYMIME"}
		}
	case Encoding8BitNeeded:
		if !s.caps.Has(ExtEightBitMime) {
			return "", &FeatureNotSupportedError{Feature: "8BITMIME"}
		}
	}

	var size int64 = -1
	if s.caps.Has(ExtSize) || s.caps.Has(ExtChunking) || opts.Progress != nil {
		n, err := formatter.Measure(writeOpts)
		if err != nil {
			return "", &IoError{Inner: err}
		}
		size = n
	}

	mailFromLine := buildMailFrom(opts, utf8, requirement, size)
	rcptLines := make([]string, len(recipients))
	for i, r := range recipients {
		rcptLines[i] = buildRcptTo(r, utf8)
	}

	var mailErr error
	outcomes := make([]recipientOutcome, len(recipients))
	for i, r := range recipients {
		outcomes[i] = recipientOutcome{mailbox: r.Mailbox}
	}

	if s.caps.Has(ExtPipelining) {
		if err := s.stream.queueCommand(ctx, []byte(mailFromLine)); err != nil {
			return "", s.fail(err)
		}
		for _, line := range rcptLines {
			if err := s.stream.queueCommand(ctx, []byte(line)); err != nil {
				return "", s.fail(err)
			}
		}
		if err := s.stream.flush(ctx); err != nil {
			return "", s.fail(err)
		}
		resp, err := s.stream.readResponse(ctx)
		if err != nil {
			return "", s.fail(err)
		}
		mailErr = classifyMailFrom(resp, opts.Sender)
		for i := range outcomes {
			resp, err := s.stream.readResponse(ctx)
			if err != nil {
				return "", s.fail(err)
			}
			classifyRcptTo(resp, &outcomes[i])
		}
	} else {
		resp, err := s.stream.sendCommand(ctx, []byte(mailFromLine))
		if err != nil {
			return "", s.fail(err)
		}
		mailErr = classifyMailFrom(resp, opts.Sender)
		if mailErr == nil {
			for i := range outcomes {
				resp, err := s.stream.sendCommand(ctx, []byte(rcptLines[i]))
				if err != nil {
					return "", s.fail(err)
				}
				classifyRcptTo(resp, &outcomes[i])
			}
		}
	}

	if mailErr != nil {
		s.notifySenderRejected(opts.Sender, mailErr)
		return "", s.recoverTransaction(ctx, mailErr)
	}
	s.notifySenderAccepted(opts.Sender)

	accepted := 0
	for _, o := range outcomes {
		if o.accepted {
			accepted++
			s.notifyRecipientAccepted(o.mailbox)
		} else if o.err != nil {
			s.notifyRecipientRejected(o.mailbox, o.err)
		}
	}
	if accepted == 0 {
		if s.cfg.Hooks.OnNoRecipientsAccepted != nil {
			s.cfg.Hooks.OnNoRecipientsAccepted()
		}
		noRecip := &CommandFailedError{Kind: MessageNotAccepted, Text: "No recipients were accepted."}
		return "", s.recoverTransaction(ctx, noRecip)
	}

	text, err := s.sendBody(ctx, formatter, writeOpts, requirement, size, opts.Progress)
	if err != nil {
		switch err.(type) {
		case *CommandFailedError, *NotAuthenticatedError:
			return "", s.recoverTransaction(ctx, err)
		}
		return "", s.fail(err)
	}
	if s.cfg.Hooks.OnMessageSent != nil {
		s.cfg.Hooks.OnMessageSent(text)
	}
	return text, nil
}

func (s *Session) sendBody(ctx context.Context, formatter MessageFormatter, opts WriteOptions, requirement EncodingRequirement, size int64, progress ProgressSink) (string, error) {
	useChunking := s.caps.Has(ExtChunking) && requirement == EncodingBinaryNeeded
	if useChunking {
		if size < 0 {
			var err error
			size, err = formatter.Measure(opts)
			if err != nil {
				return "", &IoError{Inner: err}
			}
		}
		if err := s.stream.queueCommand(ctx, []byte(fmt.Sprintf("BDAT %d LAST\r\n", size))); err != nil {
			return "", s.fail(err)
		}
		if err := s.stream.flush(ctx); err != nil {
			return "", s.fail(err)
		}
		if err := formatter.WriteTo(opts, &connDirectWriter{s: s, ctx: ctx, progress: progress, total: size}); err != nil {
			return "", s.fail(&IoError{Inner: err})
		}
		if err := s.stream.flush(ctx); err != nil {
			return "", s.fail(err)
		}
		resp, err := s.stream.readResponse(ctx)
		if err != nil {
			return "", s.fail(err)
		}
		if resp.Code == 250 {
			return resp.Text, nil
		}
		return "", classifyBodyEnd(resp)
	}

	resp, err := s.stream.sendCommand(ctx, []byte("DATA\r\n"))
	if err != nil {
		return "", s.fail(err)
	}
	switch resp.Code {
	case 354:
		// proceed below
	case 530:
		return "", &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	default:
		return "", &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus}
	}

	sink := &connDirectWriter{s: s, ctx: ctx, progress: progress, total: size}
	dw := newDotStuffWriter(sink)
	if err := formatter.WriteTo(opts, dw); err != nil {
		return "", s.fail(&IoError{Inner: err})
	}
	if err := s.stream.queueCommand(ctx, []byte("\r\n.\r\n")); err != nil {
		return "", s.fail(err)
	}
	if err := s.stream.flush(ctx); err != nil {
		return "", s.fail(err)
	}
	resp, err = s.stream.readResponse(ctx)
	if err != nil {
		return "", s.fail(err)
	}
	if resp.Code == 250 {
		return resp.Text, nil
	}
	return "", classifyBodyEnd(resp)
}

// classifyBodyEnd maps a DATA/BDAT terminating reply to an error;
// callers have already handled the 250 case themselves.
func classifyBodyEnd(resp Response) error {
	if resp.Code == 530 {
		return &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	}
	return &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: MessageNotAccepted}
}

// connDirectWriter adapts the framing stream's queue/flush write path to
// io.Writer for MessageFormatter.WriteTo, reporting progress as bytes
// are queued.
type connDirectWriter struct {
	s          *Session
	ctx        context.Context
	progress   ProgressSink
	total      int64
	transferred int64
}

func (w *connDirectWriter) Write(p []byte) (int, error) {
	if err := w.s.stream.queueCommand(w.ctx, p); err != nil {
		return 0, err
	}
	w.transferred += int64(len(p))
	if w.progress != nil {
		w.progress.Report(w.transferred, w.total)
	}
	return len(p), nil
}

// recoverTransaction issues RSET after a transactional failure and
// surfaces the original error. RSET's own I/O errors are swallowed and
// a non-250 RSET reply disconnects, so the originating error is never
// masked.
func (s *Session) recoverTransaction(ctx context.Context, original error) error {
	resp, err := s.stream.sendCommand(ctx, []byte("RSET\r\n"))
	if err != nil {
		s.fail(err)
		return original
	}
	if resp.Code != 250 {
		s.disconnectLocked()
	}
	return original
}

func (s *Session) notifySenderAccepted(mailbox string) {
	if s.cfg.Hooks.OnSenderAccepted != nil {
		s.cfg.Hooks.OnSenderAccepted(mailbox)
	}
}
func (s *Session) notifySenderRejected(mailbox string, err error) {
	if cf, ok := err.(*CommandFailedError); ok && s.cfg.Hooks.OnSenderRejected != nil {
		s.cfg.Hooks.OnSenderRejected(mailbox, cf)
	}
}
func (s *Session) notifyRecipientAccepted(mailbox string) {
	if s.cfg.Hooks.OnRecipientAccepted != nil {
		s.cfg.Hooks.OnRecipientAccepted(mailbox)
	}
}
func (s *Session) notifyRecipientRejected(mailbox string, err error) {
	if cf, ok := err.(*CommandFailedError); ok && s.cfg.Hooks.OnRecipientRejected != nil {
		s.cfg.Hooks.OnRecipientRejected(mailbox, cf)
	}
}

// classifyMailFrom maps a MAIL FROM reply: nil on acceptance,
// *NotAuthenticatedError on 530, a SenderNotAccepted
// *CommandFailedError on the well-known rejection codes, and
// UnexpectedStatus otherwise.
func classifyMailFrom(resp Response, mailbox string) error {
	switch {
	case resp.Code == 250 || resp.Code == 251:
		return nil
	case resp.Code == 530:
		return &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	case resp.Code == 550 || resp.Code == 553 || resp.Code == 450 || resp.Code == 451 || resp.Code == 452:
		return &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: SenderNotAccepted, Mailbox: mailbox}
	default:
		return &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus, Mailbox: mailbox}
	}
}

func classifyRcptTo(resp Response, outcome *recipientOutcome) {
	switch {
	case resp.Code == 250 || resp.Code == 251:
		outcome.accepted = true
	case resp.Code == 550 || resp.Code == 553 || resp.Code == 450 || resp.Code == 451 || resp.Code == 452:
		outcome.err = &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: RecipientNotAccepted, Mailbox: outcome.mailbox}
	case resp.Code == 530:
		outcome.err = &NotAuthenticatedError{Code: resp.Code, Text: resp.Text}
	default:
		outcome.err = &CommandFailedError{Code: resp.Code, Text: resp.Text, Kind: UnexpectedStatus, Mailbox: outcome.mailbox}
	}
}

func buildMailFrom(opts SendOptions, utf8 bool, requirement EncodingRequirement, size int64) string {
	var b strings.Builder
	b.WriteString("MAIL FROM:<")
	b.WriteString(renderMailbox(opts.Sender, utf8))
	b.WriteString(">")
	if utf8 {
		b.WriteString(" SMTPUTF8")
	}
	switch requirement {
	case EncodingBinaryNeeded:
		b.WriteString(" BODY=BINARYMIME")
	case Encoding8BitNeeded:
		b.WriteString(" BODY=8BITMIME")
	}
	if opts.EnvelopeID != "" {
		b.WriteString(" ENVID=")
		b.WriteString(opts.EnvelopeID)
	}
	if size >= 0 {
		fmt.Fprintf(&b, " SIZE=%d", size)
	}
	b.WriteString("\r\n")
	return b.String()
}

func buildRcptTo(r Recipient, utf8 bool) string {
	var b strings.Builder
	b.WriteString("RCPT TO:<")
	b.WriteString(renderMailbox(r.Mailbox, utf8))
	b.WriteString(">")
	if len(r.Notify) > 0 {
		b.WriteString(" NOTIFY=")
		for i, n := range r.Notify {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(string(n))
		}
	}
	b.WriteString("\r\n")
	return b.String()
}

// dedupeRecipients removes later duplicates, comparing addresses
// case-insensitively on ASCII letters only, preserving the first
// occurrence's position and NOTIFY flags. Unicode case is not folded:
// Ü@x and ü@x are distinct recipients.
func dedupeRecipients(in []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(in))
	out := make([]Recipient, 0, len(in))
	for _, r := range in {
		key := asciiLower(r.Mailbox)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// asciiLower folds only the ASCII upper-case letters, leaving every
// other byte (including multi-byte UTF-8 sequences) untouched.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
