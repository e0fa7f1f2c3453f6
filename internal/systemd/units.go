// Package systemd reports the state of the systemd units that put the
// machine to sleep. A masked unit means sleep is disabled regardless of
// inhibitor locks.
package systemd

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"preventsleep/internal/logging"
)

const (
	systemdDest = "org.freedesktop.systemd1"
	systemdPath = dbus.ObjectPath("/org/freedesktop/systemd1")
	unitIface   = "org.freedesktop.systemd1.Unit"
)

// SleepUnits are the targets systemd reaches when suspending or hibernating
var SleepUnits = []string{"sleep.target", "suspend.target", "hibernate.target", "hybrid-sleep.target"}

// UnitState holds the properties `systemctl status` shows for a unit
type UnitState struct {
	Name          string
	ActiveState   string
	LoadState     string
	UnitFileState string
}

// Masked reports whether the unit cannot be started
func (u UnitState) Masked() bool {
	return u.LoadState == "masked" || u.UnitFileState == "masked"
}

// UnitSource looks up the state of one unit
type UnitSource interface {
	UnitState(name string) (UnitState, error)
}

// Bus reads unit states from systemd over the system bus
type Bus struct {
	conn *dbus.Conn
}

// Connect opens a system bus connection
func Connect() (*Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// UnitState implements UnitSource
func (b *Bus) UnitState(name string) (UnitState, error) {
	var path dbus.ObjectPath
	manager := b.conn.Object(systemdDest, systemdPath)
	if err := manager.Call("org.freedesktop.systemd1.Manager.LoadUnit", 0, name).Store(&path); err != nil {
		return UnitState{}, fmt.Errorf("failed to load unit %s: %w", name, err)
	}

	unit := b.conn.Object(systemdDest, path)
	state := UnitState{Name: name}
	for prop, dst := range map[string]*string{
		"ActiveState":   &state.ActiveState,
		"LoadState":     &state.LoadState,
		"UnitFileState": &state.UnitFileState,
	} {
		v, err := unit.GetProperty(unitIface + "." + prop)
		if err != nil {
			return UnitState{}, fmt.Errorf("failed to read %s of %s: %w", prop, name, err)
		}
		s, ok := v.Value().(string)
		if !ok {
			return UnitState{}, fmt.Errorf("unexpected type %s for %s of %s", v.Signature(), prop, name)
		}
		*dst = s
	}
	return state, nil
}

// Close closes the bus connection
func (b *Bus) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// Reporter logs the state of the sleep units
type Reporter struct {
	source UnitSource
	units  []string
	logger *logging.Logger
}

// NewReporter creates a reporter for SleepUnits
func NewReporter(source UnitSource, logger *logging.Logger) *Reporter {
	return &Reporter{
		source: source,
		units:  SleepUnits,
		logger: logger,
	}
}

// States returns the state of every unit that could be read, and the
// errors of the ones that could not
func (r *Reporter) States() ([]UnitState, error) {
	states := make([]UnitState, 0, len(r.units))
	var errs []error
	for _, name := range r.units {
		state, err := r.source.UnitState(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		states = append(states, state)
	}
	return states, errors.Join(errs...)
}

// Log writes one event per unit at level
func (r *Reporter) Log(level logging.Level, message string) {
	states, err := r.States()
	if err != nil {
		r.logger.Warn("systemd.units.unavailable", "Cannot read systemd unit states", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for _, s := range states {
		r.logger.Log(level, "systemd.unit", message, map[string]interface{}{
			"unit":            s.Name,
			"active_state":    s.ActiveState,
			"load_state":      s.LoadState,
			"unit_file_state": s.UnitFileState,
		})
		if s.Masked() {
			r.logger.Warn("systemd.unit.masked", "Sleep unit is masked, the machine will not sleep at all", map[string]interface{}{
				"unit": s.Name,
			})
		}
	}
}
