package config

const (
	// InhibitorLogind acquires inhibitor locks over D-Bus from systemd-logind.
	InhibitorLogind = "logind"
	// InhibitorSystemdInhibit holds inhibitor locks through systemd-inhibit child processes.
	InhibitorSystemdInhibit = "systemd-inhibit"
)

// DefaultStatusFile is where the daemon publishes per-checker state for the watch view
const DefaultStatusFile = "/run/prevent-sleep/status.json"

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		CheckIntervalSeconds: 10,
		MaxInactiveSeconds:   120,
		Inhibitor:            InhibitorLogind,
		StatusFile:           DefaultStatusFile,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		SSH: SSHConfig{
			MaxReadCharsPerSecond: 20,
		},
		NFS: NFSConfig{
			ClientsDir: "/proc/fs/nfsd/clients",
		},
	}
}
