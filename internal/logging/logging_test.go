package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("test").WithOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Infof("should not appear")
	l.Warnf("should appear")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear")
	require.Contains(t, out, "WARN")
	require.True(t, strings.Contains(out, "test"))
}

func TestDurationIncludesElapsed(t *testing.T) {
	var buf bytes.Buffer
	l := New("bench").WithOutput(&buf)
	l.Duration(time.Now(), "flushed %d entries", 5)

	require.Contains(t, buf.String(), "flushed 5 entries")
}
