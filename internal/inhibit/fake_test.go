package inhibit

import (
	"errors"
	"io"
)

// fakeFacility records every acquire and tracks how many locks are live
type fakeFacility struct {
	requests []Request
	live     int
	maxLive  int
	failNext error
	closeErr error
}

type fakeHandle struct {
	f      *fakeFacility
	closed bool
}

func (f *fakeFacility) Acquire(req Request) (io.Closer, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.requests = append(f.requests, req)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return &fakeHandle{f: f}, nil
}

func (h *fakeHandle) Close() error {
	if h.closed {
		return errors.New("already closed")
	}
	h.closed = true
	h.f.live--
	return h.f.closeErr
}
