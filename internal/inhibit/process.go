package inhibit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"preventsleep/internal/logging"
)

// ProcessFacility holds each lock through a `systemd-inhibit ... sleep infinity`
// child process. It is the fallback when talking to logind directly is not possible.
type ProcessFacility struct {
	path   string
	logger *logging.Logger
}

// NewProcessFacility locates systemd-inhibit on PATH
func NewProcessFacility(logger *logging.Logger) (*ProcessFacility, error) {
	path, err := exec.LookPath("systemd-inhibit")
	if err != nil {
		return nil, fmt.Errorf("systemd-inhibit not found: %w", err)
	}
	return newProcessFacility(path, logger), nil
}

func newProcessFacility(path string, logger *logging.Logger) *ProcessFacility {
	return &ProcessFacility{path: path, logger: logger}
}

// Acquire starts a systemd-inhibit child holding the lock
func (p *ProcessFacility) Acquire(req Request) (io.Closer, error) {
	cmd := exec.Command(p.path,
		"--what="+WhatSleep,
		"--who="+req.Who,
		"--why="+req.Description(),
		"--mode="+req.Mode,
		"sleep", "infinity",
	)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start systemd-inhibit: %w", err)
	}

	h := &processHandle{cmd: cmd, done: make(chan error, 1)}
	// Reap the child in background so it doesn't become a zombie.
	go func() { h.done <- cmd.Wait() }()

	p.logger.Debug("inhibit.process.started", "systemd-inhibit started", map[string]interface{}{
		"checker": req.Name,
		"pid":     cmd.Process.Pid,
	})

	return h, nil
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan error
	once sync.Once
	err  error
}

// Close kills the child and waits for it to exit
func (h *processHandle) Close() error {
	h.once.Do(func() {
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.err = fmt.Errorf("kill systemd-inhibit: %w", err)
			return
		}
		<-h.done
	})
	return h.err
}
