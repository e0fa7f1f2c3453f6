package checks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preventsleep/internal/config"
)

var testUsers = map[uint64]string{
	0:    "root",
	74:   "sshd",
	1000: "alice",
	1001: "bob",
}

func testLookupUser(uid uint64) string {
	if name, ok := testUsers[uid]; ok {
		return name
	}
	return strconv.FormatUint(uid, 10)
}

// writeProc creates <root>/<pid>/{comm,status,io} the way the kernel lays them out
func writeProc(t *testing.T, root string, pid int, comm string, uid uint64, rchar uint64) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	status := fmt.Sprintf("Name:\t%s\nState:\tS (sleeping)\nPid:\t%d\nUid:\t%d\t%d\t%d\t%d\nGid:\t%d\t%d\t%d\t%d\n",
		comm, pid, uid, uid, uid, uid, uid, uid, uid, uid)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644))
	setRChar(t, root, pid, rchar)
}

func setRChar(t *testing.T, root string, pid int, rchar uint64) {
	t.Helper()
	io := fmt.Sprintf("rchar: %d\nwchar: 0\nsyscr: 0\nsyscw: 0\nread_bytes: 0\nwrite_bytes: 0\ncancelled_write_bytes: 0\n", rchar)
	require.NoError(t, os.WriteFile(filepath.Join(root, strconv.Itoa(pid), "io"), []byte(io), 0o644))
}

func newTestSSHChecker(t *testing.T, root string) *SSHChecker {
	t.Helper()
	logger, _ := newTestLogger(t)
	return NewSSHChecker(SSHOptions{
		ProcRoot:              root,
		MaxReadCharsPerSecond: 20,
		CheckInterval:         10 * time.Second,
		LookupUser:            testLookupUser,
	}, logger)
}

func TestSSHChecker_Name(t *testing.T) {
	assert.Equal(t, "SSH", newTestSSHChecker(t, t.TempDir()).Name())
}

func TestSSHChecker_Threshold(t *testing.T) {
	logger, _ := newTestLogger(t)

	c := NewSSHChecker(SSHOptions{MaxReadCharsPerSecond: 20, CheckInterval: 10 * time.Second}, logger)
	assert.Equal(t, uint64(200), c.maxReadChars)

	// Sub-second intervals count as one second
	c = NewSSHChecker(SSHOptions{MaxReadCharsPerSecond: 20, CheckInterval: 500 * time.Millisecond}, logger)
	assert.Equal(t, uint64(20), c.maxReadChars)
}

func TestSSHChecker_NoSessions(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 1, "systemd", 0, 0)
	writeProc(t, root, 50, "sshd", 0, 999999)

	c := newTestSSHChecker(t, root)
	assert.Equal(t, "", c.Check())
}

func TestSSHChecker_SessionLifecycle(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 50, "sshd", 0, 0)
	writeProc(t, root, 60, "sshd", 74, 0)
	writeProc(t, root, 100, "sshd-session", 1000, 1000)

	c := newTestSSHChecker(t, root)

	// New session counts as active
	assert.Equal(t, "1 active clients [(100, alice)]", c.Check())

	// Below threshold: idle
	setRChar(t, root, 100, 1100)
	assert.Equal(t, "", c.Check())

	// Above threshold: active
	setRChar(t, root, 100, 1400)
	assert.Equal(t, "1 active clients [(100, alice)]", c.Check())

	// Unchanged activity yields an equal reason
	setRChar(t, root, 100, 1700)
	assert.Equal(t, "1 active clients [(100, alice)]", c.Check())

	require.NoError(t, os.RemoveAll(filepath.Join(root, "100")))
	assert.Equal(t, "", c.Check())
	assert.Empty(t, c.sessions)
}

func TestSSHChecker_IdleAfterConnectLoggedAtInfo(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 100, "sshd", 1000, 1000)

	logger, buf := newTestLogger(t)
	c := NewSSHChecker(SSHOptions{
		ProcRoot:              root,
		MaxReadCharsPerSecond: 20,
		CheckInterval:         10 * time.Second,
		LookupUser:            testLookupUser,
	}, logger)

	assert.Equal(t, "1 active clients [(100, alice)]", c.Check())
	assert.True(t, c.sessions[100].active)

	// First quiet check after connecting is a transition
	assert.Equal(t, "", c.Check())
	assert.Equal(t, 1, countEvents(buf, "ssh.check.inactive"))
	assert.Equal(t, 1, countEvents(buf, "ssh.check.idle"))

	// Staying quiet drops to debug
	assert.Equal(t, "", c.Check())
	assert.Equal(t, 1, countEvents(buf, "ssh.check.inactive"))
	assert.Equal(t, 1, countEvents(buf, "ssh.check.idle"))
}

func TestSSHChecker_SortsByPID(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 300, "sshd", 1001, 0)
	writeProc(t, root, 200, "sshd", 1000, 0)

	c := newTestSSHChecker(t, root)
	assert.Equal(t, "2 active clients [(200, alice) (300, bob)]", c.Check())

	// Only bob keeps reading
	setRChar(t, root, 300, 5000)
	assert.Equal(t, "1 active clients [(300, bob)]", c.Check())
}

func TestSSHChecker_UnreadableCountersAssumeActive(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 100, "sshd", 1000, 0)
	require.NoError(t, os.Remove(filepath.Join(root, "100", "io")))

	logger, buf := newTestLogger(t)
	c := NewSSHChecker(SSHOptions{
		ProcRoot:              root,
		MaxReadCharsPerSecond: 20,
		CheckInterval:         time.Second,
		LookupUser:            testLookupUser,
	}, logger)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "1 active clients [(100, alice)]", c.Check())
	}
	assert.Equal(t, 1, countEvents(buf, "ssh.check.assumed_active"), "warning is logged once per transition")
}

func TestSSHChecker_MissingProcRoot(t *testing.T) {
	logger, buf := newTestLogger(t)
	c := NewSSHChecker(SSHOptions{
		ProcRoot:   filepath.Join(t.TempDir(), "missing"),
		LookupUser: testLookupUser,
	}, logger)

	assert.Equal(t, "", c.Check())
	assert.Equal(t, "", c.Check())
	// Nothing was known before, so nothing changed
	assert.Equal(t, 0, countEvents(buf, "ssh.check.no_proc"))
}

func TestNewSSHFromConfig(t *testing.T) {
	logger, _ := newTestLogger(t)
	cfg := config.DefaultConfig()
	cfg.SSH.MaxReadCharsPerSecond = 5
	cfg.CheckIntervalSeconds = 4

	checker, err := newSSHFromConfig(cfg, logger)
	require.NoError(t, err)

	ssh, ok := checker.(*SSHChecker)
	require.True(t, ok)
	assert.Equal(t, uint64(20), ssh.maxReadChars)
}
