package checks

import (
	"errors"
	"fmt"
	"io/fs"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/procfs"

	"preventsleep/internal/config"
	"preventsleep/internal/logging"
)

// sshdNames are the process names of per-connection sshd processes.
// OpenSSH 9.8 renamed the session process to sshd-session.
var sshdNames = map[string]bool{
	"sshd":         true,
	"sshd-session": true,
}

// Users owning the listener and privilege separation processes
var sshdSystemUsers = map[string]bool{
	"root": true,
	"sshd": true,
}

// SSHOptions configures an SSHChecker
type SSHOptions struct {
	// ProcRoot is the procfs mount point, normally /proc
	ProcRoot string
	// MaxReadCharsPerSecond is the read rate above which a session is active
	MaxReadCharsPerSecond int
	// CheckInterval is the time between two calls to Check
	CheckInterval time.Duration
	// LookupUser maps a uid to a user name; defaults to os/user
	LookupUser func(uid uint64) string
}

// SSHChecker reports SSH sessions that read more than a threshold of
// characters between two checks. New sessions count as active.
type SSHChecker struct {
	procRoot     string
	maxReadChars uint64
	lookupUser   func(uid uint64) string
	logger       *logging.Logger

	sessions map[int]sshSession
}

type sshSession struct {
	pid       int
	user      string
	readChars uint64
	active    bool
	assumed   bool
	ioErr     error
}

// NewSSHChecker creates an SSH session checker
func NewSSHChecker(opts SSHOptions, logger *logging.Logger) *SSHChecker {
	if opts.ProcRoot == "" {
		opts.ProcRoot = procfs.DefaultMountPoint
	}
	if opts.LookupUser == nil {
		opts.LookupUser = lookupUserName
	}

	seconds := uint64(opts.CheckInterval / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	return &SSHChecker{
		procRoot:     opts.ProcRoot,
		maxReadChars: uint64(opts.MaxReadCharsPerSecond) * seconds,
		lookupUser:   opts.LookupUser,
		logger:       logger,
		sessions:     map[int]sshSession{},
	}
}

func newSSHFromConfig(cfg config.Config, logger *logging.Logger) (Checker, error) {
	return NewSSHChecker(SSHOptions{
		MaxReadCharsPerSecond: cfg.SSH.MaxReadCharsPerSecond,
		CheckInterval:         checkInterval(cfg),
	}, logger), nil
}

// Name implements Checker
func (c *SSHChecker) Name() string {
	return "SSH"
}

// Check implements Checker
func (c *SSHChecker) Check() string {
	prev := c.sessions
	c.sessions = map[int]sshSession{}

	procs, err := c.listProcs()
	if err != nil {
		c.logger.Log(levelFor(len(prev) > 0), "ssh.check.no_proc", "No connections - process table not readable", map[string]interface{}{
			"checker": c.Name(),
			"error":   err.Error(),
		})
		return ""
	}

	prevActive := false
	var active []sshSession

	for _, proc := range procs {
		session, ok := c.inspect(proc)
		if !ok {
			continue
		}

		before, seen := prev[session.pid]
		prevActive = prevActive || before.active

		delta := session.readChars - before.readChars
		if session.readChars < before.readChars {
			delta = session.readChars
		}

		switch {
		case session.ioErr != nil:
			message := "Cannot read I/O counters. Assuming session active."
			if errors.Is(session.ioErr, fs.ErrPermission) {
				message = "Must run as root to determine if session is active. Assuming session active."
			}
			level := logging.LevelWarn
			if before.assumed {
				level = logging.LevelDebug
			}
			c.logger.Log(level, "ssh.check.assumed_active", message, map[string]interface{}{
				"checker": c.Name(),
				"pid":     session.pid,
				"user":    session.user,
				"error":   session.ioErr.Error(),
			})
			session.active = true
			session.assumed = true
		case seen && delta > c.maxReadChars:
			session.active = true
			c.logger.Log(levelFor(!before.active), "ssh.check.active", "Active connection - prevent sleep", map[string]interface{}{
				"checker":   c.Name(),
				"pid":       session.pid,
				"user":      session.user,
				"read":      delta,
				"threshold": c.maxReadChars,
			})
		case !seen:
			// Newly connected sessions block sleep until proven idle
			session.active = true
			c.logger.Info("ssh.check.new", "Found connection - prevent sleep", map[string]interface{}{
				"checker": c.Name(),
				"pid":     session.pid,
				"user":    session.user,
			})
		default:
			c.logger.Log(levelFor(before.active), "ssh.check.inactive", "Inactive connection", map[string]interface{}{
				"checker":   c.Name(),
				"pid":       session.pid,
				"user":      session.user,
				"read":      delta,
				"threshold": c.maxReadChars,
			})
		}

		if session.active {
			active = append(active, session)
		}
		c.sessions[session.pid] = session
	}

	for pid, before := range prev {
		if _, ok := c.sessions[pid]; !ok {
			c.logger.Info("ssh.check.disconnected", "Client has disconnected", map[string]interface{}{
				"checker": c.Name(),
				"pid":     pid,
				"user":    before.user,
			})
		}
	}

	if len(active) > 0 {
		sort.Slice(active, func(i, j int) bool { return active[i].pid < active[j].pid })
		parts := make([]string, 0, len(active))
		for _, s := range active {
			parts = append(parts, fmt.Sprintf("(%d, %s)", s.pid, s.user))
		}
		return fmt.Sprintf("%d active clients [%s]", len(active), strings.Join(parts, " "))
	}

	if len(c.sessions) == 0 {
		c.logger.Log(levelFor(len(prev) > 0), "ssh.check.none", "No connections", map[string]interface{}{
			"checker": c.Name(),
		})
		return ""
	}

	c.logger.Log(levelFor(prevActive), "ssh.check.idle", "No active connections", map[string]interface{}{
		"checker":     c.Name(),
		"connections": len(c.sessions),
	})
	return ""
}

func (c *SSHChecker) listProcs() (procfs.Procs, error) {
	fsys, err := procfs.NewFS(c.procRoot)
	if err != nil {
		return nil, err
	}
	return fsys.AllProcs()
}

// inspect returns the session for a user owned sshd process. ioErr is set
// when its I/O counters cannot be read.
func (c *SSHChecker) inspect(proc procfs.Proc) (sshSession, bool) {
	comm, err := proc.Comm()
	if err != nil || !sshdNames[comm] {
		return sshSession{}, false
	}

	status, err := proc.NewStatus()
	if err != nil {
		return sshSession{}, false
	}

	name := c.lookupUser(status.UIDs[0])
	if sshdSystemUsers[name] {
		return sshSession{}, false
	}

	session := sshSession{pid: proc.PID, user: name}

	counters, err := proc.IO()
	if err != nil {
		session.ioErr = err
		return session, true
	}

	session.readChars = counters.RChar
	return session, true
}

func lookupUserName(uid uint64) string {
	id := strconv.FormatUint(uid, 10)
	u, err := user.LookupId(id)
	if err != nil {
		return id
	}
	return u.Username
}
