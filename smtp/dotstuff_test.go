package smtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDotStuffLeadingDots(t *testing.T) {
	require.Equal(t, "..\r\n", string(dotStuff([]byte(".\r\n"))))
	require.Equal(t, "..x\r\n", string(dotStuff([]byte(".x\r\n"))))
	require.Equal(t, "a.b\r\n", string(dotStuff([]byte("a.b\r\n"))))
	require.Equal(t, "line1\r\n..line2\r\n", string(dotStuff([]byte("line1\r\n.line2\r\n"))))
	// a trailing partial line with a leading dot is still escaped
	require.Equal(t, "a\r\n..", string(dotStuff([]byte("a\r\n."))))
}

func TestDotStuffSplitWrites(t *testing.T) {
	// line-head tracking must survive arbitrary Write boundaries
	var out []byte
	w := newDotStuffWriter(writerFunc(func(p []byte) (int, error) {
		out = append(out, p...)
		return len(p), nil
	}))
	for _, chunk := range []string{"ab\r", "\n", ".", "cd\r\n", ".."} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.Equal(t, "ab\r\n..cd\r\n...", string(out))
}

func TestDotUnstuffIsLeftInverse(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("plain\r\n"),
		[]byte(".\r\n"),
		[]byte("..\r\n"),
		[]byte(".a\r\n.b\r\n"),
		[]byte("x\r\n.\r\ny\r\n"),
		[]byte("no trailing newline."),
		[]byte(".leading dot, no newline"),
	}
	for _, in := range inputs {
		require.Equal(t, in, dotUnstuff(dotStuff(in)), "input %q", in)
	}
}

func TestDotStuffNotIdempotent(t *testing.T) {
	once := dotStuff([]byte(".\r\n"))
	twice := dotStuff(once)
	require.NotEqual(t, once, twice)
}
