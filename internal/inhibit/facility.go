// Package inhibit wraps the systemd sleep inhibition facility.
//
// A Facility hands out inhibitor locks; each lock is an io.Closer and the
// lock is released when it is closed. An Inhibitor owns at most one lock at
// a time on behalf of a single checker and only talks to the facility when
// the reason it has to report changes.
package inhibit

import "io"

const (
	// Owner is reported to logind as the "who" of every lock.
	Owner = "prevent-sleep"
	// WhatSleep is the logind lock type covering suspend and hibernate.
	WhatSleep = "sleep"
	// ModeBlock takes a blocking lock, as opposed to "delay".
	ModeBlock = "block"
)

// Request describes one inhibitor lock to acquire
type Request struct {
	Who  string
	Name string
	Why  string
	Mode string
}

// Description is the human readable reason shown by `systemd-inhibit --list`
func (r Request) Description() string {
	return r.Name + ": " + r.Why
}

// Facility acquires inhibitor locks.
// Acquire must not return until the lock is held.
type Facility interface {
	Acquire(req Request) (io.Closer, error)
}
