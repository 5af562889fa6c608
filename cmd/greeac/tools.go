package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/greeac/internal/config"
	"github.com/muurk/greeac/internal/discovery"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/simulator"
	"github.com/muurk/greeac/internal/transport"
	"github.com/muurk/greeac/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find bridges on the network",
	Long: `Browse mDNS for greeac bridges and list every one that answers within
the timeout.`,
	Example: `  greeac scan
  greeac scan --timeout 10s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Bridge discovery", "greeac scan",
		ui.D("Service", discovery.ServiceType),
		ui.D("Timeout", scanTimeout.String()),
	)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	bridges, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintError("Scan failed", err, "mDNS needs UDP port 5353 open on this host")
		return errReported
	}

	if len(bridges) == 0 {
		p.PrintError("No bridges found", nil,
			"Check 'greeac run' is running with discovery.advertise enabled",
			"mDNS does not cross subnets or most VPNs",
			"Try a longer --timeout",
		)
		return errReported
	}

	for _, b := range bridges {
		details := []ui.Detail{
			ui.D("Address", b.BaseURL()),
			ui.D("Host", b.Hostname),
			ui.D("Version", b.GetMetadata(discovery.TXTKeyVersion)),
		}
		if serial := b.GetMetadata(discovery.TXTKeySerial); serial != "" {
			details = append(details, ui.D("Serial", serial))
		}
		p.PrintSuccess(b.Instance, details...)
	}
	return nil
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	ports, err := transport.ListPorts()
	if err != nil {
		p.PrintError("Cannot list serial ports", err)
		return errReported
	}
	if len(ports) == 0 {
		p.PrintWarning("No serial ports found")
		return nil
	}

	details := make([]ui.Detail, 0, len(ports))
	for _, port := range ports {
		desc := "native"
		if port.IsUSB {
			desc = fmt.Sprintf("USB %s:%s %s", port.VID, port.PID, port.Product)
		}
		details = append(details, ui.D(port.Name, desc))
	}
	p.PrintSuccess(fmt.Sprintf("%d serial port(s)", len(ports)), details...)
	return nil
}

var (
	simPort     string
	simMode     string
	simFan      string
	simTarget   int
	simCurrent  int
	simInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as an indoor unit on a serial port",
	Long: `Answer command frames on a serial port the way an indoor unit does, and
send status frames on a timer. Wire two USB adapters back to back (or use a
virtual serial pair) to test a bridge without an air conditioner.`,
	Example: `  socat -d -d pty,raw,echo=0 pty,raw,echo=0   # prints two /dev/pts/N
  greeac simulate --port /dev/pts/3
  greeac run --port /dev/pts/4`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simPort, "port", "", "Serial port (required)")
	simulateCmd.Flags().StringVar(&simMode, "mode", "cool", "Initial mode")
	simulateCmd.Flags().StringVar(&simFan, "fan", "auto", "Initial fan speed")
	simulateCmd.Flags().IntVar(&simTarget, "temp", 24, "Initial target temperature")
	simulateCmd.Flags().IntVar(&simCurrent, "indoor", 26, "Indoor temperature to report")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 5*time.Second, "Unsolicited status interval (0 disables)")
	_ = simulateCmd.MarkFlagRequired("port")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	mode, err := protocol.ParseMode(simMode)
	if err != nil {
		return err
	}
	fan, err := protocol.ParseFanSpeed(simFan)
	if err != nil {
		return err
	}

	sc := config.Default().Serial
	sc.Port = simPort
	s, err := transport.Open(serialConfig(sc))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unit := simulator.NewUnit(mode, fan, simTarget, simCurrent)
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Simulated unit", "greeac simulate",
		ui.D("Port", s.Name()),
		ui.D("Start", fmt.Sprintf("%s/%s %d°C, indoor %d°C", mode, fan, simTarget, simCurrent)),
	)

	go func() {
		<-ctx.Done()
		// Release the blocked read
		_ = s.Close()
	}()
	err = unit.Serve(ctx, s, simInterval)

	handled, forced := unit.Counts()
	logging.Info("Simulator stopped", zap.Int("handled", handled), zap.Int("forced", forced))
	p.PrintSuccess("Simulator stopped",
		ui.D("Commands", fmt.Sprintf("%d", handled)),
		ui.D("Forced", fmt.Sprintf("%d", forced)),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if err := config.CreateDefaultConfig(path, configForce); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Config written", ui.D("Path", path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		if err == nil {
			for _, m := range cfg.Serial.UARTMismatches() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", m)
			}
			if verr := cfg.Validate(); verr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", verr)
			}
		}
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
