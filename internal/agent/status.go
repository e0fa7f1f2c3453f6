package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"preventsleep/internal/fsutil"
	"preventsleep/internal/logging"
)

// Status is the content of the status file
type Status struct {
	PID      int        `json:"pid"`
	Loop     int        `json:"loop"`
	Updated  time.Time  `json:"updated"`
	Checkers []Snapshot `json:"checkers"`
}

// StatusWriter publishes the latest snapshots to a JSON file so that other
// processes can show them. It implements Observer.
type StatusWriter struct {
	filePath string
	logger   *logging.Logger
	failing  bool
}

// NewStatusWriter creates a status writer for filePath
func NewStatusWriter(filePath string, logger *logging.Logger) *StatusWriter {
	return &StatusWriter{
		filePath: filePath,
		logger:   logger,
	}
}

// Observe writes the status after the first loop and whenever a lock changed
func (sw *StatusWriter) Observe(loopNum int, snapshots []Snapshot) {
	changed := loopNum == 0
	for _, s := range snapshots {
		changed = changed || s.Changed
	}
	if !changed {
		return
	}

	err := sw.Save(Status{
		PID:      os.Getpid(),
		Loop:     loopNum,
		Updated:  time.Now(),
		Checkers: snapshots,
	})
	if err != nil {
		level := logging.LevelWarn
		if sw.failing {
			level = logging.LevelDebug
		}
		sw.logger.Log(level, "agent.status.save_failed", "Failed to write status file", map[string]interface{}{
			"path":  sw.filePath,
			"error": err.Error(),
		})
	}
	sw.failing = err != nil
}

// Save writes status to the file atomically
func (sw *StatusWriter) Save(status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := fsutil.AtomicWriteFile(sw.filePath, data, 0o644, sw.logger); err != nil {
		return err
	}

	sw.logger.Debug("agent.status.saved", "Status saved", map[string]interface{}{
		"path": sw.filePath,
		"loop": status.Loop,
	})
	return nil
}

// Close removes the status file
func (sw *StatusWriter) Close() error {
	if err := os.Remove(sw.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove status file: %w", err)
	}
	return nil
}

// LoadStatus reads a status file written by StatusWriter
func LoadStatus(filePath string) (Status, error) {
	data, err := os.ReadFile(filePath) // #nosec G304 -- path from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, fmt.Errorf("status file not found: %w", err)
		}
		return Status{}, fmt.Errorf("failed to read status file: %w", err)
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return status, nil
}
