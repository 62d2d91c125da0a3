package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/puppetizer/internal/client"
	"github.com/turtacn/puppetizer/internal/control"
	"github.com/turtacn/puppetizer/internal/monitor"
	"github.com/turtacn/puppetizer/internal/service"
	"github.com/turtacn/puppetizer/internal/signals"
	"github.com/turtacn/puppetizer/internal/spawn"
	"github.com/turtacn/puppetizer/internal/supervisor"
	"github.com/turtacn/puppetizer/pkg/consts"
	errs "github.com/turtacn/puppetizer/pkg/errors"
	"github.com/turtacn/puppetizer/pkg/logger"
	"github.com/turtacn/puppetizer/pkg/protocol"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "puppetizer",
	Short: "Puppetizer: a minimal PID-1 process supervisor",
	Long: `Puppetizer runs as PID 1 inside a container or minimal system. It runs
a convergence command at boot, reaps children, supervises services declared
under the services directory and answers start/stop/status commands over a
local control socket.

With no subcommand it runs the supervisor itself; the start, stop and
status subcommands talk to a running supervisor.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runSupervisor())
	},
}

func loadConfig() (*protocol.Config, error) {
	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, err
	}
	var cfg protocol.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

func runSupervisor() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return int(errs.ErrCodeConfigInvalid)
	}
	if len(cfg.Supervisor.ApplyCommand) == 0 {
		fmt.Fprintln(os.Stderr, "Error: supervisor.apply_command is required")
		return int(errs.ErrCodeConfigInvalid)
	}

	logger.InitLogger(cfg.Observability.LogLevel)
	monitor.InitMetrics(cfg.Observability.MetricsAddr)

	logger.Log.Info("Running init", "socket", cfg.Supervisor.ControlSocket)

	// The signal source must be installed before the tty detach: dropping
	// the controlling terminal as session leader raises SIGHUP.
	src := signals.NewSource()
	defer src.Close()

	supervisor.DetachFromTerminal()

	reg := service.NewRegistry(spawn.System{})
	if err := reg.Discover(cfg.Supervisor.ServicesDir); err != nil {
		logger.Log.Error("Service discovery failed", "err", err)
		return int(errs.Code(err))
	}

	srv, err := control.Listen(cfg.Supervisor.ControlSocket)
	if err != nil {
		logger.Log.Error("Failed to create listening socket", "err", err)
		return int(errs.Code(err))
	}

	loop := supervisor.NewLoop(cfg.Supervisor.ApplyCommand, reg, src, srv)
	if err := loop.StartBoot(); err != nil {
		logger.Log.Error("Could not start boot script", "err", err)
		srv.Close()
		return int(errs.Code(err))
	}

	return loop.Run()
}

// controlSocket resolves the socket path for client subcommands. A missing
// or broken config file falls back to the default path so the client stays
// usable from environments without the supervisor's config.
func controlSocket() string {
	if cfg, err := loadConfig(); err == nil {
		return cfg.Supervisor.ControlSocket
	}
	return consts.DefaultControlSocket
}

func clientCmd(name, short string, typ control.CommandType) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <service>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(client.RunStdio(controlSocket(), typ, args[0]))
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "puppetizer.yaml", "config file path")
	rootCmd.AddCommand(clientCmd("start", "Start a supervised service", control.CmdStart))
	rootCmd.AddCommand(clientCmd("stop", "Request that a supervised service stops", control.CmdStop))
	rootCmd.AddCommand(clientCmd("status", "Query the state of a supervised service", control.CmdStatus))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
