package agent

import (
	"time"

	"preventsleep/internal/checks"
	"preventsleep/internal/inhibit"
	"preventsleep/internal/logging"
)

// State is the logical state of one checker/inhibitor pair
type State string

const (
	// StateIdle means no activity was ever seen
	StateIdle State = "idle"
	// StateActive means activity was seen on the last check
	StateActive State = "active"
	// StateDraining means activity stopped but the grace period has not elapsed
	StateDraining State = "draining"
	// StateReleased means the grace period elapsed and the lock was released
	StateReleased State = "released"
)

// States lists every State in lifecycle order
var States = []State{StateIdle, StateActive, StateDraining, StateReleased}

// Action is the inhibitor call made by the last step
type Action string

const (
	ActionNone      Action = ""
	ActionInhibit   Action = "inhibit"
	ActionUninhibit Action = "uninhibit"
)

// CheckInhibit pairs a checker with its own inhibitor and keeps sleep
// inhibited for maxInactive after the checker last reported activity.
//
// lastActive is never cleared once set, so after a release the pair keeps
// computing elapsed time from the last activity and stays Released.
type CheckInhibit struct {
	checker     checks.Checker
	inhibitor   *inhibit.Inhibitor
	maxInactive time.Duration
	logger      *logging.Logger
	now         func() time.Time

	lastActive time.Time
	state      State
	action     Action
	changed    bool
}

// NewCheckInhibit creates a pair in the Idle state
func NewCheckInhibit(checker checks.Checker, inhibitor *inhibit.Inhibitor, maxInactive time.Duration, logger *logging.Logger) *CheckInhibit {
	return &CheckInhibit{
		checker:     checker,
		inhibitor:   inhibitor,
		maxInactive: maxInactive,
		logger:      logger,
		now:         time.Now,
		state:       StateIdle,
	}
}

// Name returns the checker name
func (ci *CheckInhibit) Name() string {
	return ci.checker.Name()
}

// State returns the state reached by the last step
func (ci *CheckInhibit) State() State {
	return ci.state
}

// Step runs the checker once and drives the inhibitor accordingly.
// It returns whether the inhibitor changed its lock. When the inhibitor
// call fails the pair keeps its previous state and action.
func (ci *CheckInhibit) Step() (bool, error) {
	why := ci.checker.Check()
	now := ci.now()

	var (
		state   State
		action  Action
		changed bool
		err     error
	)

	switch {
	case why != "":
		ci.lastActive = now
		state, action = StateActive, ActionInhibit
		changed, err = ci.inhibitor.Inhibit(why)

	case ci.lastActive.IsZero():
		state, action = StateIdle, ActionNone

	case now.Sub(ci.lastActive) > ci.maxInactive:
		ci.logger.Log(levelFor(ci.state != StateReleased), "agent.grace.elapsed", "No activity for longer than max inactive time - removing block", map[string]interface{}{
			"checker":      ci.checker.Name(),
			"inactive":     now.Sub(ci.lastActive).String(),
			"max_inactive": ci.maxInactive.String(),
		})
		state, action = StateReleased, ActionUninhibit
		changed, err = ci.inhibitor.Uninhibit()

	default:
		ci.logger.Debug("agent.grace.pending", "Time since last activity is less than max inactive time", map[string]interface{}{
			"checker":      ci.checker.Name(),
			"inactive":     now.Sub(ci.lastActive).String(),
			"max_inactive": ci.maxInactive.String(),
		})
		state, action = StateDraining, ActionInhibit
		changed, err = ci.inhibitor.Inhibit(drainingReason(ci.lastActive.Add(ci.maxInactive)))
	}

	if err != nil {
		ci.changed = false
		return false, err
	}

	ci.setState(state, action)
	ci.changed = changed
	return changed, nil
}

// Snapshot describes the pair after its last step
func (ci *CheckInhibit) Snapshot() Snapshot {
	return Snapshot{
		Checker:    ci.checker.Name(),
		State:      ci.state,
		Action:     ci.action,
		Changed:    ci.changed,
		Inhibited:  ci.inhibitor.Inhibited(),
		Reason:     ci.inhibitor.Reason(),
		LastActive: ci.lastActive,
	}
}

// Close releases the lock, if any
func (ci *CheckInhibit) Close() error {
	return ci.inhibitor.Close()
}

func (ci *CheckInhibit) setState(state State, action Action) {
	if state != ci.state {
		ci.logger.Debug("agent.state", "Checker state changed", map[string]interface{}{
			"checker": ci.checker.Name(),
			"from":    string(ci.state),
			"to":      string(state),
		})
	}
	ci.state = state
	ci.action = action
}

func levelFor(changed bool) logging.Level {
	if changed {
		return logging.LevelInfo
	}
	return logging.LevelDebug
}

func drainingReason(release time.Time) string {
	return "No activity. Will remove block at " + release.Format(time.RFC3339)
}
