package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"preventsleep/internal/inhibit"
	"preventsleep/internal/logging"
)

// fakeChecker returns scripted results, then repeats the last one
type fakeChecker struct {
	name    string
	results []string
	calls   int
	closed  bool
}

func (c *fakeChecker) Name() string { return c.name }

func (c *fakeChecker) Check() string {
	defer func() { c.calls++ }()
	if len(c.results) == 0 {
		return ""
	}
	if c.calls < len(c.results) {
		return c.results[c.calls]
	}
	return c.results[len(c.results)-1]
}

type closingChecker struct {
	fakeChecker
}

func (c *closingChecker) Close() error {
	c.closed = true
	return nil
}

// fakeFacility records acquired and released locks
type fakeFacility struct {
	requests []inhibit.Request
	released int
	live     int
	failNext error
}

type fakeHandle struct {
	f *fakeFacility
}

func (f *fakeFacility) Acquire(req inhibit.Request) (io.Closer, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.requests = append(f.requests, req)
	f.live++
	return &fakeHandle{f: f}, nil
}

func (f *fakeFacility) reasons() []string {
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Why)
	}
	return out
}

func (h *fakeHandle) Close() error {
	h.f.live--
	h.f.released++
	return nil
}

var errFacility = errors.New("bus gone")

// fakeClock advances only when the agent sleeps
type fakeClock struct {
	t time.Time
	// overhead is added to every sleep to model time spent running checks
	overhead time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.advance(d + c.overhead)
	return ctx.Err()
}

func newTestLogger(level logging.Level) (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewWriterLogger(level, logging.FormatText, &buf), &buf
}

func countEvents(buf *bytes.Buffer, eventType string) int {
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, " "+eventType+" ") {
			n++
		}
	}
	return n
}

// recordingObserver keeps every observed loop
type recordingObserver struct {
	loops  [][]Snapshot
	onLoop func(loopNum int)
}

func (o *recordingObserver) Observe(loopNum int, snapshots []Snapshot) {
	o.loops = append(o.loops, snapshots)
	if o.onLoop != nil {
		o.onLoop(loopNum)
	}
}
