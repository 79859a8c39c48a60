package smtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeMailboxDomain(t *testing.T) {
	require.Equal(t, "user@xn--bcher-kva.example", encodeMailboxDomain("user@bücher.example"))
	require.Equal(t, "user@plain.example", encodeMailboxDomain("user@plain.example"))
	require.Equal(t, "postmaster", encodeMailboxDomain("postmaster"))
}

func TestRenderMailbox(t *testing.T) {
	// SMTPUTF8 in force: the raw internationalized form goes on the wire.
	require.Equal(t, "user@bücher.example", renderMailbox("user@bücher.example", true))
	// Otherwise the domain is A-label encoded.
	require.Equal(t, "user@xn--bcher-kva.example", renderMailbox("user@bücher.example", false))
}
