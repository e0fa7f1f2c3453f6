package checks

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"preventsleep/internal/config"
	"preventsleep/internal/logging"
)

// NFSChecker reports every client listed by the kernel NFS server
type NFSChecker struct {
	clientsDir string
	logger     *logging.Logger

	clients  map[string]nfsClient
	dirFound bool
}

type nfsClient struct {
	id      string
	name    string
	address string
}

func (c nfsClient) String() string {
	return fmt.Sprintf("(%s, %s, %s)", c.id, c.name, c.address)
}

// NewNFSChecker creates a checker reading <clientsDir>/<id>/info
func NewNFSChecker(clientsDir string, logger *logging.Logger) *NFSChecker {
	return &NFSChecker{
		clientsDir: clientsDir,
		logger:     logger,
		clients:    map[string]nfsClient{},
		dirFound:   true,
	}
}

func newNFSFromConfig(cfg config.Config, logger *logging.Logger) (Checker, error) {
	return NewNFSChecker(cfg.NFS.ClientsDir, logger), nil
}

// Name implements Checker
func (c *NFSChecker) Name() string {
	return "NFS"
}

// Check implements Checker
func (c *NFSChecker) Check() string {
	entries, err := os.ReadDir(c.clientsDir)
	if err != nil {
		c.logger.Log(levelFor(c.dirFound), "nfs.check.no_dir", "No clients - clients directory not readable", map[string]interface{}{
			"checker": c.Name(),
			"dir":     c.clientsDir,
			"error":   err.Error(),
		})
		c.dirFound = false
		c.clients = map[string]nfsClient{}
		return ""
	}
	c.dirFound = true

	current := make(map[string]nfsClient, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		client, err := readNFSClient(filepath.Join(c.clientsDir, entry.Name()), entry.Name())
		if err != nil {
			// Client went away between listing and reading
			c.logger.Debug("nfs.check.read_failed", "Failed to read client info", map[string]interface{}{
				"checker": c.Name(),
				"client":  entry.Name(),
				"error":   err.Error(),
			})
			continue
		}

		_, known := c.clients[client.id]
		c.logger.Log(levelFor(!known), "nfs.check.client", "Found client - prevent sleep", map[string]interface{}{
			"checker": c.Name(),
			"client":  client.String(),
		})
		current[client.id] = client
	}

	for id, prev := range c.clients {
		if _, ok := current[id]; !ok {
			c.logger.Info("nfs.check.disconnected", "Client has disconnected", map[string]interface{}{
				"checker": c.Name(),
				"client":  prev.String(),
			})
		}
	}

	hadClients := len(c.clients) > 0
	c.clients = current

	if len(current) == 0 {
		c.logger.Log(levelFor(hadClients), "nfs.check.none", "No clients", map[string]interface{}{
			"checker": c.Name(),
		})
		return ""
	}

	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, current[id].String())
	}
	return fmt.Sprintf("%d clients [%s]", len(current), strings.Join(parts, " "))
}

// readNFSClient extracts the name and address lines of one client info file
func readNFSClient(dir, id string) (nfsClient, error) {
	data, err := os.ReadFile(filepath.Join(dir, "info")) // #nosec G304 -- path below the configured clients dir
	if err != nil {
		return nfsClient{}, err
	}

	client := nfsClient{id: id}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.TrimSpace(key) {
		case "name":
			client.name = value
		case "address":
			client.address = value
		}
	}
	return client, scanner.Err()
}
