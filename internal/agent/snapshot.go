package agent

import "time"

// Snapshot is the observable outcome of one CheckInhibit step
type Snapshot struct {
	Checker    string    `json:"checker"`
	State      State     `json:"state"`
	Action     Action    `json:"action,omitempty"`
	Changed    bool      `json:"changed"`
	Inhibited  bool      `json:"inhibited"`
	Reason     string    `json:"reason,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// Observer receives the snapshots of every completed loop
type Observer interface {
	Observe(loopNum int, snapshots []Snapshot)
}
