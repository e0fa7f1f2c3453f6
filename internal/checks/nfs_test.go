package checks

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNFSClient(t *testing.T, dir, id, name, address string) {
	t.Helper()
	clientDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(clientDir, 0o755))
	info := fmt.Sprintf("clientid: 0x6d0c6a3b6569bfe5\naddress: \"%s\"\nstatus: confirmed\nname: \"%s\"\nminor version: 2\n", address, name)
	require.NoError(t, os.WriteFile(filepath.Join(clientDir, "info"), []byte(info), 0o644))
}

func TestNFSChecker_Name(t *testing.T) {
	logger, _ := newTestLogger(t)
	assert.Equal(t, "NFS", NewNFSChecker(t.TempDir(), logger).Name())
}

func TestNFSChecker_Clients(t *testing.T) {
	dir := t.TempDir()
	logger, buf := newTestLogger(t)
	c := NewNFSChecker(dir, logger)

	assert.Equal(t, "", c.Check())

	writeNFSClient(t, dir, "7", "Linux NFSv4.2 laptop", "192.168.1.20:877")
	writeNFSClient(t, dir, "12", "Linux NFSv4.2 desktop", "192.168.1.21:703")

	want := "2 clients [(12, Linux NFSv4.2 desktop, 192.168.1.21:703) (7, Linux NFSv4.2 laptop, 192.168.1.20:877)]"
	assert.Equal(t, want, c.Check())
	assert.Equal(t, want, c.Check())
	assert.Equal(t, 2, countEvents(buf, "nfs.check.client"), "known clients are logged at debug")

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "12")))
	assert.Equal(t, "1 clients [(7, Linux NFSv4.2 laptop, 192.168.1.20:877)]", c.Check())
	assert.Equal(t, 1, countEvents(buf, "nfs.check.disconnected"))
}

func TestNFSChecker_SkipsUnreadableClient(t *testing.T) {
	dir := t.TempDir()
	writeNFSClient(t, dir, "1", "host", "10.0.0.1:1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray"), []byte("x"), 0o644))

	logger, _ := newTestLogger(t)
	c := NewNFSChecker(dir, logger)
	assert.Equal(t, "1 clients [(1, host, 10.0.0.1:1)]", c.Check())
}

func TestNFSChecker_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clients")
	logger, buf := newTestLogger(t)
	c := NewNFSChecker(dir, logger)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "", c.Check())
	}
	assert.Equal(t, 1, countEvents(buf, "nfs.check.no_dir"), "logged at info only on transition")

	// Directory appears: back to normal, and a later loss is logged again
	writeNFSClient(t, dir, "3", "host", "10.0.0.3:1")
	assert.Equal(t, "1 clients [(3, host, 10.0.0.3:1)]", c.Check())

	require.NoError(t, os.RemoveAll(dir))
	assert.Equal(t, "", c.Check())
	assert.Equal(t, 2, countEvents(buf, "nfs.check.no_dir"))
}

func TestReadNFSClient(t *testing.T) {
	dir := t.TempDir()
	writeNFSClient(t, dir, "5", "Linux NFSv4.1 nas", "[fe80::1]:800")

	client, err := readNFSClient(filepath.Join(dir, "5"), "5")
	require.NoError(t, err)
	assert.Equal(t, nfsClient{id: "5", name: "Linux NFSv4.1 nas", address: "[fe80::1]:800"}, client)

	_, err = readNFSClient(filepath.Join(dir, "missing"), "missing")
	assert.Error(t, err)
}
