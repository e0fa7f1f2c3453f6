// Package service installs the systemd unit that runs prevent-sleep.
package service

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"preventsleep/internal/fsutil"
	"preventsleep/internal/logging"
)

const (
	// UnitName is the installed unit file name
	UnitName = "prevent-sleep.service"
	// DefaultSystemdDir is where administrator units live
	DefaultSystemdDir = "/etc/systemd/system"
)

//go:embed prevent-sleep.service.tmpl
var unitTemplate string

// Systemctl runs the systemctl commands the installer needs
type Systemctl interface {
	DaemonReload() error
}

// execSystemctl calls the systemctl binary
type execSystemctl struct {
	binary string
}

func (s execSystemctl) DaemonReload() error {
	// #nosec G204 -- fixed arguments
	cmd := exec.Command(s.binary, "daemon-reload")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// Installer writes the unit file
type Installer struct {
	systemdDir string
	execPath   string
	systemctl  Systemctl
	logger     *logging.Logger
}

// NewInstaller creates an installer for the running executable
func NewInstaller(logger *logging.Logger) (*Installer, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	return &Installer{
		systemdDir: DefaultSystemdDir,
		execPath:   execPath,
		systemctl:  execSystemctl{binary: "systemctl"},
		logger:     logger,
	}, nil
}

// Render returns the unit file content
func (i *Installer) Render() ([]byte, error) {
	tmpl, err := template.New(UnitName).Parse(unitTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ ExecPath string }{i.execPath}); err != nil {
		return nil, fmt.Errorf("failed to render unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit file and reloads systemd. It returns the path
// written.
func (i *Installer) Install() (string, error) {
	data, err := i.Render()
	if err != nil {
		return "", err
	}

	target := filepath.Join(i.systemdDir, UnitName)
	if err := fsutil.AtomicWriteFile(target, data, 0o644, i.logger); err != nil {
		return "", fmt.Errorf("failed to install %s: %w", target, err)
	}

	i.logger.Info("service.installed", "Service definition installed", map[string]interface{}{
		"path":      target,
		"exec_path": i.execPath,
	})

	if err := i.systemctl.DaemonReload(); err != nil {
		i.logger.Warn("service.reload_failed", "Failed to reload systemd, run 'systemctl daemon-reload' manually", map[string]interface{}{
			"error": err.Error(),
		})
	}

	i.logger.Info("service.next_step", "Execute: sudo systemctl enable --now prevent-sleep", nil)
	return target, nil
}
