package config

// Config represents the complete prevent-sleep configuration
type Config struct {
	CheckIntervalSeconds int           `yaml:"check_interval_seconds"`
	MaxInactiveSeconds   int           `yaml:"max_inactive_seconds"`
	Inhibitor            string        `yaml:"inhibitor"`
	StatusFile           string        `yaml:"status_file"`
	Logging              LoggingConfig `yaml:"logging"`
	SSH                  SSHConfig     `yaml:"ssh"`
	NFS                  NFSConfig     `yaml:"nfs"`
	Metrics              MetricsConfig `yaml:"metrics"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SSHConfig tunes the SSH session checker
type SSHConfig struct {
	// MaxReadCharsPerSecond is the read rate above which a session counts as active
	MaxReadCharsPerSecond int `yaml:"max_read_chars_per_second"`
}

// NFSConfig tunes the NFS client checker
type NFSConfig struct {
	ClientsDir string `yaml:"clients_dir"`
}

// MetricsConfig controls the Prometheus endpoint; empty Listen disables it
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
