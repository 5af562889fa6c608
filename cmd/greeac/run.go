package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/config"
	"github.com/muurk/greeac/internal/discovery"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/metrics"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/server"
	"github.com/muurk/greeac/internal/simulator"
	"github.com/muurk/greeac/internal/transport"
	"github.com/muurk/greeac/internal/version"
)

// Run command flags
var (
	runPort      string
	runListen    string
	runSimulated bool
	runNoMDNS    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Open the UART to the indoor unit and serve the API.

The bridge polls the UART for status frames, re-sends its command frame
periodically, and forwards control requests from the REST and WebSocket
API to the unit at once. Settings come from the config file; flags
override them.`,
	Example: `  # Run with the config file
  greeac run

  # Override the serial port and listen address
  greeac run --port /dev/ttyAMA0 --listen :9000

  # Try the API without hardware, against a simulated unit
  greeac run --simulate`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().StringVar(&runPort, "port", "", "Serial port (overrides config)")
	runCmd.Flags().StringVar(&runListen, "listen", "", "API listen address (overrides config)")
	runCmd.Flags().BoolVar(&runSimulated, "simulate", false, "Use a simulated indoor unit instead of the UART")
	runCmd.Flags().BoolVar(&runNoMDNS, "no-mdns", false, "Do not advertise the bridge over mDNS")

	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

func initLogging(cfg *config.Config) error {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if cfg.Logging.File != "" {
		opts.File = &logging.FileOptions{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	return logging.InitializeWithOptions(opts)
}

// link is what the bridge needs from either the UART or the simulator pipe.
type link interface {
	climate.Transport
	Close() error
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runPort != "" {
		cfg.Serial.Port = runPort
	}
	if runListen != "" {
		cfg.Server.Listen = runListen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, m := range cfg.Serial.UARTMismatches() {
		logging.Warn("Serial setting differs from the indoor unit", zap.String("setting", m))
	}

	uart, serialName, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer uart.Close()

	reg := metrics.NewRegistry()
	var appMetrics *metrics.AppMetrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.NewAppMetrics(reg)
	} else {
		reg = nil
	}

	ctrl := climate.NewController(uart, climate.Options{
		UpdateInterval: cfg.UpdateInterval,
		PollInterval:   cfg.PollInterval,
		Metrics:        appMetrics,
	})

	srv, err := server.New(server.Config{
		Listen:       cfg.Server.Listen,
		CertFile:     cfg.Server.CertFile,
		KeyFile:      cfg.Server.KeyFile,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ControlRate:  cfg.Server.ControlRate,
		ControlBurst: cfg.Server.ControlBurst,
		Registry:     reg,
		Metrics:      appMetrics,
	}, ctrl)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Listen, err)
	}

	if cfg.Discovery.Advertise && !runNoMDNS {
		adv, err := discovery.Advertise(discovery.Advertisement{
			Instance:   instanceName(cfg.Discovery.Instance),
			Port:       ln.Addr().(*net.TCPAddr).Port,
			Version:    version.Version,
			TLS:        srv.TLS(),
			SerialPort: serialName,
		})
		if err != nil {
			// The API still works by address
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	logging.Info("Bridge starting",
		zap.String("version", version.Full()),
		zap.String("serial", serialName),
		zap.String("listen", ln.Addr().String()),
	)

	ctrlDone := make(chan error, 1)
	go func() { ctrlDone <- ctrl.Run(ctx) }()

	serveErr := srv.Serve(ctx, ln)
	stop()
	if err := <-ctrlDone; err != nil && serveErr == nil {
		serveErr = err
	}
	logging.Info("Bridge stopped")
	return serveErr
}

// openLink opens the UART, or starts a simulated unit on an in-memory pipe.
func openLink(ctx context.Context, cfg *config.Config) (link, string, error) {
	if runSimulated {
		host, unitSide := transport.NewPipe()
		unit := simulator.NewUnit(protocol.ModeCool, protocol.FanSpeedAuto, 24, 26)
		go func() {
			if err := unit.Serve(ctx, unitSide, 5*time.Second); err != nil {
				logging.Error("Simulated unit stopped", zap.Error(err))
			}
		}()
		logging.Info("Using a simulated indoor unit")
		return host, "simulator", nil
	}

	s, err := transport.Open(serialConfig(cfg.Serial))
	if err != nil {
		return nil, "", err
	}
	return s, s.Name(), nil
}

func serialConfig(sc *config.SerialConfig) transport.Config {
	return transport.Config{
		Port:     sc.Port,
		VID:      sc.VID,
		PID:      sc.PID,
		BaudRate: sc.BaudRate,
		DataBits: sc.DataBits,
		Parity:   sc.Parity,
		StopBits: sc.StopBits,
	}
}

func instanceName(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "greeac"
	}
	return "greeac-" + host
}
