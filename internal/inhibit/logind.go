package inhibit

import (
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"

	"preventsleep/internal/logging"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	logindMethod = "org.freedesktop.login1.Manager.Inhibit"
)

// busObject is the subset of dbus.BusObject used by Logind
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Logind acquires inhibitor locks from systemd-logind over the system bus.
// Each lock is a file descriptor; closing it releases the lock.
type Logind struct {
	conn   io.Closer
	obj    busObject
	logger *logging.Logger
}

// NewLogind connects to the system bus. There is no inhibition without it,
// so callers treat an error as fatal.
func NewLogind(logger *logging.Logger) (*Logind, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	if !conn.SupportsUnixFDs() {
		_ = conn.Close()
		return nil, fmt.Errorf("system bus connection does not support unix fd passing")
	}

	logger.Debug("inhibit.logind.connected", "Connected to D-Bus system bus", map[string]interface{}{
		"destination": logindDest,
		"path":        string(logindPath),
	})

	return &Logind{
		conn:   conn,
		obj:    conn.Object(logindDest, logindPath),
		logger: logger,
	}, nil
}

// Acquire calls org.freedesktop.login1.Manager.Inhibit
func (l *Logind) Acquire(req Request) (io.Closer, error) {
	var fd dbus.UnixFD
	call := l.obj.Call(logindMethod, 0, WhatSleep, req.Who, req.Description(), req.Mode)
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("logind inhibit %s: %w", req.Name, err)
	}

	l.logger.Debug("inhibit.logind.fd", "Inhibit file handle acquired", map[string]interface{}{
		"checker": req.Name,
		"fd":      int(fd),
	})

	return os.NewFile(uintptr(fd), "inhibit-"+req.Name), nil
}

// Close closes the bus connection
func (l *Logind) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
