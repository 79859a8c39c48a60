package smtp

import (
	"strings"

	"golang.org/x/net/idna"
)

// encodeMailboxDomain returns the domain part of a mailbox address in
// ASCII (A-label) form, used for MAIL FROM/RCPT TO lines when SMTPUTF8
// is not in force. mailbox is the bare address without angle brackets;
// addresses with no '@' (unusual but not impossible, e.g. postmaster
// aliases some relays accept) are returned unchanged.
func encodeMailboxDomain(mailbox string) string {
	at := strings.LastIndexByte(mailbox, '@')
	if at < 0 {
		return mailbox
	}
	local, domain := mailbox[:at], mailbox[at+1:]
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		// A domain idna cannot encode is passed through raw; the server
		// will reject it if it truly cannot accept it, rather than the
		// client guessing at a replacement.
		return mailbox
	}
	return local + "@" + ascii
}

// renderMailbox picks the internationalized or ASCII-encoded rendering
// of a mailbox address depending on whether SMTPUTF8 is in force for
// this transaction.
func renderMailbox(mailbox string, utf8 bool) string {
	if utf8 {
		return mailbox
	}
	return encodeMailboxDomain(mailbox)
}
