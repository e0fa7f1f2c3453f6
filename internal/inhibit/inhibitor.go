package inhibit

import (
	"errors"
	"fmt"
	"io"

	"preventsleep/internal/logging"
)

// ErrEmptyReason is returned by Inhibit when called without a reason
var ErrEmptyReason = errors.New("inhibit reason must not be empty")

// Inhibitor remembers the lock it holds for one checker so that the facility
// is only called, and state only logged at info, when something changes.
//
// Invariant: handle != nil iff why != "".
type Inhibitor struct {
	name     string
	who      string
	facility Facility
	logger   *logging.Logger

	why    string
	handle io.Closer
}

// NewInhibitor creates an inhibitor for the named checker
func NewInhibitor(name string, facility Facility, logger *logging.Logger) *Inhibitor {
	return &Inhibitor{
		name:     name,
		who:      Owner,
		facility: facility,
		logger:   logger,
	}
}

// Name returns the checker name this inhibitor acts for
func (i *Inhibitor) Name() string {
	return i.name
}

// Reason returns the reason of the currently held lock, or "" when not inhibited
func (i *Inhibitor) Reason() string {
	return i.why
}

// Inhibited reports whether a lock is currently held
func (i *Inhibitor) Inhibited() bool {
	return i.handle != nil
}

// Inhibit makes sure a lock with the given reason is held.
// It returns false without calling the facility when the same reason is already held.
// A lock with a different reason is replaced make-before-break: the new lock is
// acquired before the old one is released.
func (i *Inhibitor) Inhibit(why string) (bool, error) {
	if why == "" {
		return false, ErrEmptyReason
	}

	if i.handle != nil && why == i.why {
		i.logger.Debug("inhibit.unchanged", "Sleep is already inhibited for same reason - nothing to do", map[string]interface{}{
			"checker": i.name,
			"why":     why,
		})
		return false, nil
	}

	i.logger.Info("inhibit.acquire", "Inhibiting sleep/suspend", map[string]interface{}{
		"checker": i.name,
		"who":     i.who,
		"why":     why,
	})

	handle, err := i.facility.Acquire(Request{
		Who:  i.who,
		Name: i.name,
		Why:  why,
		Mode: ModeBlock,
	})
	if err != nil {
		return false, fmt.Errorf("%s: inhibit: %w", i.name, err)
	}

	prev := i.handle
	i.handle = handle
	i.why = why

	if prev != nil {
		i.release(prev)
	}

	return true, nil
}

// Uninhibit releases the held lock, if any.
// It returns false when nothing was held.
func (i *Inhibitor) Uninhibit() (bool, error) {
	if i.handle == nil {
		i.logger.Debug("inhibit.not_held", "Sleep was not inhibited - nothing to do", map[string]interface{}{
			"checker": i.name,
		})
		return false, nil
	}

	i.logger.Info("inhibit.release", "Removing sleep/suspend inhibit", map[string]interface{}{
		"checker": i.name,
		"why":     i.why,
	})

	handle := i.handle
	i.handle = nil
	i.why = ""

	if err := handle.Close(); err != nil {
		return true, fmt.Errorf("%s: release inhibit: %w", i.name, err)
	}
	return true, nil
}

// Close releases any held lock. It is used on shutdown.
func (i *Inhibitor) Close() error {
	_, err := i.Uninhibit()
	return err
}

// release closes a replaced lock. The replacement is already held, so a
// failure here only leaves an extra lock behind and is not returned.
func (i *Inhibitor) release(handle io.Closer) {
	i.logger.Debug("inhibit.replace", "Closing replaced inhibit handle", map[string]interface{}{
		"checker": i.name,
	})
	if err := handle.Close(); err != nil {
		i.logger.Warn("inhibit.replace.failed", "Failed to close replaced inhibit handle", map[string]interface{}{
			"checker": i.name,
			"error":   err.Error(),
		})
	}
}
