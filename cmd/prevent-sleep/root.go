package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"preventsleep/internal/agent"
	"preventsleep/internal/checks"
	"preventsleep/internal/config"
	"preventsleep/internal/fsutil"
	"preventsleep/internal/inhibit"
	"preventsleep/internal/logging"
	"preventsleep/internal/metrics"
	"preventsleep/internal/service"
	"preventsleep/internal/systemd"
)

type rootOptions struct {
	configPath         string
	sleepSeconds       int
	maxInactiveSeconds int
	logLevel           string
	installService     bool
	showVersion        bool
	maxLoops           int
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prevent-sleep",
		Short: "Prevent the machine from sleeping while remote clients are active",
		Long: `prevent-sleep polls for active SSH sessions, NFS clients and GPU compute
jobs and holds a systemd-logind sleep inhibitor lock while any are found.
The lock is released once no activity was seen for --max-inactive-seconds.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "prevent-sleep %s\n", version)
				return nil
			}

			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer fsutil.CloseWithError(logger.Close, nil, "log file")

			if opts.installService {
				return installService(logger)
			}
			return runDaemon(cmd.Context(), cfg, opts.maxLoops, logger)
		},
	}

	flags := cmd.Flags()
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file (default "+config.SystemConfigPath()+")")
	flags.IntVar(&opts.sleepSeconds, "sleep-seconds", 10, "Time to sleep between each check")
	flags.IntVar(&opts.maxInactiveSeconds, "max-inactive-seconds", 120, "Time to keep sleep inhibited after the last activity")
	flags.StringVar(&opts.logLevel, "loglevel", "info", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.installService, "install-service", false, "Install the systemd service")
	flags.BoolVarP(&opts.showVersion, "version", "V", false, "Print the program version")
	flags.IntVar(&opts.maxLoops, "max-loops", 0, "Stop after this many loops (0 runs forever)")
	_ = flags.MarkHidden("max-loops")

	cmd.AddCommand(newWatchCmd(opts), newUnitsCmd())
	return cmd
}

// resolveConfig loads defaults < system or --config file < explicitly set flags
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := loadConfigFile(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("loglevel") {
		level, err := logging.ParseLevel(opts.logLevel)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid loglevel: %w", err)
		}
		cfg.Logging.Level = string(level)
	}
	if flags.Changed("sleep-seconds") {
		cfg.CheckIntervalSeconds = opts.sleepSeconds
	}
	if flags.Changed("max-inactive-seconds") {
		cfg.MaxInactiveSeconds = opts.maxInactiveSeconds
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.Logging.Format)

	if cfg.Logging.File != "" {
		return logging.NewFileLogger(level, format, cfg.Logging.File)
	}
	return logging.NewWriterLogger(level, format, os.Stderr), nil
}

func installService(logger *logging.Logger) error {
	installer, err := service.NewInstaller(logger)
	if err != nil {
		return err
	}
	_, err = installer.Install()
	return err
}

func newFacility(cfg config.Config, logger *logging.Logger) (inhibit.Facility, error) {
	switch cfg.Inhibitor {
	case config.InhibitorSystemdInhibit:
		return inhibit.NewProcessFacility(logger)
	default:
		return inhibit.NewLogind(logger)
	}
}

func runDaemon(ctx context.Context, cfg config.Config, maxLoops int, logger *logging.Logger) error {
	facility, err := newFacility(cfg, logger)
	if err != nil {
		logger.Error("inhibit.unavailable", "Cannot reach the sleep inhibitor", map[string]interface{}{
			"inhibitor": cfg.Inhibitor,
			"error":     err.Error(),
		})
		return err
	}
	if closer, ok := facility.(io.Closer); ok {
		defer fsutil.CloseWithError(closer.Close, logger, "inhibitor facility")
	}

	checkers := checks.Discover(cfg, logger)

	if bus, err := systemd.Connect(); err != nil {
		logger.Warn("systemd.unavailable", "Cannot report systemd unit states", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer fsutil.CloseWithError(bus.Close, logger, "system bus")
		reporter := systemd.NewReporter(bus, logger)
		reporter.Log(logging.LevelInfo, "Unit states")
		defer reporter.Log(logging.LevelWarn, "Exit")
	}

	a := agent.New(checkers, facility, time.Duration(cfg.MaxInactiveSeconds)*time.Second, agent.Options{
		Interval: time.Duration(cfg.CheckIntervalSeconds) * time.Second,
		MaxLoops: maxLoops,
	}, logger)

	if cfg.StatusFile != "" {
		a.AddObserver(agent.NewStatusWriter(cfg.StatusFile, logger))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Listen != "" {
		srv, err := startMetrics(ctx, cfg.Metrics.Listen, a, logger)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			<-srv
		}()
	}

	return a.Run(ctx)
}

// startMetrics registers the recorder and serves it until ctx is done. The
// returned channel is closed once the server has stopped.
func startMetrics(ctx context.Context, addr string, a *agent.Agent, logger *logging.Logger) (<-chan struct{}, error) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder()
	if err := recorder.Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	a.AddObserver(recorder)

	srv, err := metrics.Listen(addr, reg, logger)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			logger.Error("metrics.failed", "Metrics server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
	return done, nil
}
