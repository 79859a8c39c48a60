package lalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerFormat(t *testing.T) {
	logger := Logger{}
	require.Equal(t, "a", logger.Format("", "", nil, "a"))
	require.Equal(t, `Error "test"`, logger.Format("", "", errors.New("test"), ""))
	require.Equal(t, `Error "test" - a`, logger.Format("", "", errors.New("test"), "a"))
	require.Equal(t, `(act): Error "test" - a`, logger.Format("", "act", errors.New("test"), "a"))
	require.Equal(t, `fun(act): Error "test" - a`, logger.Format("fun", "act", errors.New("test"), "a"))

	logger.ComponentID = []LoggerIDField{{"a", 1}, {"b", "c"}}
	require.Equal(t, `[a=1;b=c].fun(act): Error "test" - a`, logger.Format("fun", "act", errors.New("test"), "a"))

	logger.ComponentName = "comp"
	require.Equal(t, `comp[a=1;b=c].fun(act): Error "test" - a`, logger.Format("fun", "act", errors.New("test"), "a"))
	require.Equal(t, `comp[a=1;b=c]: Error "test"`, logger.Format("", "", errors.New("test"), ""))

	// over-long messages are truncated to the cap
	msg := logger.Format("fun", "act", errors.New("test"), strings.Repeat("a", MaxLogMessageLen))
	require.Len(t, msg, MaxLogMessageLen)
	require.Contains(t, msg, strings.Repeat("a", 500))
}

func TestLoggerPanic(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	logger := Logger{}
	logger.Panic("", nil, "")
	t.Fatal("did not panic")
}

func TestLoggerInfoKeepsLatestLogs(t *testing.T) {
	LatestLogs.Clear()
	LatestWarnings.Clear()
	ClearDedupBuffers()

	logger := Logger{ComponentName: "infotest"}
	logger.Info("a", nil, "message one")
	logger.Info("b", nil, "message two")

	require.Len(t, LatestLogs.GetAll(), 2)
	require.Empty(t, LatestWarnings.GetAll())

	// an Info carrying an error is treated as a warning
	logger.Info("c", errors.New("boom"), "message three")
	require.Len(t, LatestLogs.GetAll(), 3)
	require.Len(t, LatestWarnings.GetAll(), 1)
}

func TestLoggerWarningDeduplicatesActors(t *testing.T) {
	LatestLogs.Clear()
	LatestWarnings.Clear()
	ClearDedupBuffers()
	NumDropped.Store(0)

	logger := Logger{ComponentName: "warntest"}
	logger.Warning("actor1", errors.New("x"), "first")
	logger.Warning("actor1", errors.New("x"), "second from the same actor is dropped")
	logger.Warning("actor2", errors.New("x"), "different actor still goes through")

	require.Len(t, LatestWarnings.GetAll(), 2)
	require.Equal(t, int64(1), NumDropped.Load())
}

func TestLoggerInfoDeduplicatesContent(t *testing.T) {
	LatestLogs.Clear()
	LatestWarnings.Clear()
	ClearDedupBuffers()

	logger := Logger{ComponentName: "deduptest"}
	logger.Info("a", nil, "identical")
	logger.Info("a", nil, "identical")
	require.Len(t, LatestLogs.GetAll(), 1)
}

func TestMaybeMinorError(t *testing.T) {
	logger := Logger{}
	logger.MaybeMinorError(nil)
	logger.MaybeMinorError(errors.New("testError"))
	// connection-closure noise is suppressed entirely
	logger.MaybeMinorError(errors.New("use of closed network connection"))
	logger.MaybeMinorError(errors.New("broken pipe"))
}

func TestTruncateString(t *testing.T) {
	require.Equal(t, "", TruncateString("", -1))
	require.Equal(t, "", TruncateString("", 0))
	require.Equal(t, "", TruncateString("a", 0))

	require.Equal(t, "a", TruncateString("aa", 1))
	require.Equal(t, "aa", TruncateString("aa", 2))
	require.Equal(t, "aa", TruncateString("aa", 3))

	require.Equal(t, "0123456789", TruncateString("01234567890123456789", 10))
	require.Equal(t, "01234567890123456", TruncateString("01234567890123456789", 17))
	require.Equal(t, "0...(truncated)...", TruncateString("01234567890123456789", 18))
	require.Equal(t, "0...(truncated)...9", TruncateString("01234567890123456789", 19))
	require.Equal(t, "0123...(truncated)...6789", TruncateString("012345678901234567890123456789", 25))

	require.Contains(t, TruncateString(strings.Repeat("a", 1000), 500), strings.Repeat("a", 241))
}

func TestLintString(t *testing.T) {
	require.Equal(t, "", LintString("", -1))
	require.Equal(t, "", LintString("", 0))
	require.Equal(t, "a", LintString("abc", 1))
	require.Equal(t, "__ a __ b\n _ c\t _", LintString("\x01\x08 a \x0e\x1f b\n \x7f c\t \x80", 100))
}
