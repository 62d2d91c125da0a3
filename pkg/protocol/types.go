package protocol

import "github.com/turtacn/puppetizer/pkg/consts"

// Config is the root YAML configuration of the supervisor.
type Config struct {
	Version       string              `yaml:"version"`
	Supervisor    SupervisorConfig    `yaml:"supervisor"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SupervisorConfig struct {
	// ControlSocket is the filesystem path of the local control endpoint.
	ControlSocket string `yaml:"control_socket"`
	// ApplyCommand is the convergence/bootstrap command. It is run at boot,
	// on SIGHUP, and with the "halt" argument appended during shutdown.
	ApplyCommand []string `yaml:"apply_command"`
	// ServicesDir holds the per-service run scripts (<name>.start) and
	// optional stop hooks (<name>.stop).
	ServicesDir string `yaml:"services_dir"`
}

type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus listen address; empty disables metrics.
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Normalize fills in defaults for fields left empty in the YAML file.
func (c *Config) Normalize() {
	if c.Supervisor.ControlSocket == "" {
		c.Supervisor.ControlSocket = consts.DefaultControlSocket
	}
	if c.Supervisor.ServicesDir == "" {
		c.Supervisor.ServicesDir = consts.DefaultServicesDir
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}
