package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/submitmail/smtpsubmit/smtp"
)

func TestNewBufferDetectsRequirement(t *testing.T) {
	require.Equal(t, smtp.EncodingNone, NewBuffer([]byte("plain ascii\r\n")).Requirement)
	require.Equal(t, smtp.Encoding8BitNeeded, NewBuffer([]byte("sm\xc3\xb6rg\xc3\xa5s\r\n")).Requirement)
	require.Equal(t, smtp.EncodingBinaryNeeded, NewBuffer([]byte("nul\x00byte")).Requirement)
	// NUL wins over high bytes
	require.Equal(t, smtp.EncodingBinaryNeeded, NewBuffer([]byte("\xc3\xa9\x00")).Requirement)
}

func TestBufferMeasureAndWrite(t *testing.T) {
	content := []byte("Subject: hello\r\n\r\nbody\r\n")
	b := NewBuffer(content)
	b.Prepare(smtp.ConstraintSevenBit)

	n, err := b.Measure(smtp.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), n)

	var out bytes.Buffer
	require.NoError(t, b.WriteTo(smtp.WriteOptions{}, &out))
	require.Equal(t, content, out.Bytes())
}

func TestBufferExplicitRequirementOverride(t *testing.T) {
	b := &Buffer{Content: []byte("ascii"), Requirement: smtp.Encoding8BitNeeded}
	require.Equal(t, smtp.Encoding8BitNeeded, b.VisitEncoding())
}
