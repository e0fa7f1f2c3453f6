package checks

import (
	"bytes"
	"strings"
	"testing"

	"preventsleep/internal/logging"
)

// newTestLogger returns a text logger at info level and the buffer it writes to
func newTestLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return logging.NewWriterLogger(logging.LevelInfo, logging.FormatText, &buf), &buf
}

// countEvents counts logged lines with the given event type
func countEvents(buf *bytes.Buffer, eventType string) int {
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, " "+eventType+" ") {
			n++
		}
	}
	return n
}
