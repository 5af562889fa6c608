package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/greeac/internal/client"
	"github.com/muurk/greeac/internal/discovery"
	"github.com/muurk/greeac/internal/ui"
)

// Flags for commands that talk to a running bridge
var (
	bridgeAddr     string
	bridgeInstance string
	bridgeInsecure bool
	scanTimeout    time.Duration
)

func addBridgeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&bridgeAddr, "addr", "", "Bridge address or URL (default: discover over mDNS)")
	cmd.Flags().StringVar(&bridgeInstance, "instance", "", "mDNS instance to connect to (default: first found)")
	cmd.Flags().BoolVar(&bridgeInsecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "mDNS discovery timeout")
}

// resolveBridge returns the base URL of the bridge to talk to.
func resolveBridge(ctx context.Context) (string, error) {
	if bridgeAddr != "" {
		return bridgeAddr, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	if bridgeInstance != "" {
		b, err := scanner.WaitFor(ctx, bridgeInstance)
		if err != nil {
			return "", err
		}
		return b.BaseURL(), nil
	}

	bridges, err := scanner.Scan(ctx)
	if err != nil {
		return "", err
	}
	if len(bridges) == 0 {
		return "", fmt.Errorf("no bridge found within %s; use --addr", scanTimeout)
	}
	return bridges[0].BaseURL(), nil
}

func newBridgeClient(cmd *cobra.Command) (*client.Client, error) {
	url, err := resolveBridge(cmd.Context())
	if err != nil {
		return nil, err
	}
	c := client.New(url)
	if bridgeInsecure {
		c.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // self-signed LAN bridges
	}
	return c, nil
}

func printBridgeError(p *ui.Printer, title string, err error) error {
	var tips []string
	if hint := client.TroubleshootingHint(err); hint != "" {
		tips = append(tips, hint)
	}
	p.PrintError(title, err, tips...)
	return errReported
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running bridge",
	Example: `  greeac status
  greeac status --addr 192.168.1.20:8080`,
	RunE: runStatus,
}

func init() {
	addBridgeFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newBridgeClient(cmd)
	if err != nil {
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())

	health, err := c.Health(cmd.Context())
	if err != nil {
		return printBridgeError(p, "Bridge unreachable", err)
	}
	st, err := c.State(cmd.Context())
	if err != nil {
		return printBridgeError(p, "Cannot read state", err)
	}

	lastFrame := "never"
	if health.LastFrameAgeSeconds != nil {
		lastFrame = (time.Duration(*health.LastFrameAgeSeconds * float64(time.Second))).Truncate(time.Second).String() + " ago"
	}

	p.PrintHeader("Bridge status", "greeac status",
		ui.D("Bridge", c.BaseURL),
		ui.D("Build", health.Build.Version+" ("+health.Build.Commit+")"),
	)
	details := []ui.Detail{
		ui.D("Mode", st.Mode.String()),
		ui.D("Fan", st.FanSpeed.String()),
		ui.D("Target", fmt.Sprintf("%d°C", st.TargetTemperature)),
		ui.D("Indoor", fmt.Sprintf("%d°C", st.CurrentTemperature)),
		ui.D("Last frame", lastFrame),
		ui.D("Clients", fmt.Sprintf("%d", health.WebSocketClients)),
	}
	if !st.Known() {
		p.PrintWarning("No status frame from the unit yet", details...)
		return nil
	}
	p.PrintSuccess("Unit state", details...)
	return nil
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a control request through a running bridge",
	Long: `Send a control request to a running bridge. Fields that are not given
keep their current values. With no fields the current command frame is
sent again.`,
	Example: `  greeac set --mode cool --temp 23
  greeac set --fan high --addr 192.168.1.20:8080`,
	RunE: runSet,
}

func init() {
	addRequestFlags(setCmd)
	addBridgeFlags(setCmd)
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	c, err := newBridgeClient(cmd)
	if err != nil {
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())

	st, err := c.Control(cmd.Context(), req)
	if err != nil {
		return printBridgeError(p, "Control request failed", err)
	}
	p.PrintSuccess("Sent to the unit",
		ui.D("Request", req.String()),
		ui.D("Mode", st.Mode.String()),
		ui.D("Fan", st.FanSpeed.String()),
		ui.D("Target", fmt.Sprintf("%d°C", st.TargetTemperature)),
	)
	return nil
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch and control a running bridge in the terminal",
	RunE:  runMonitor,
}

func init() {
	addBridgeFlags(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	c, err := newBridgeClient(cmd)
	if err != nil {
		return err
	}
	return ui.RunMonitor(c.BaseURL, func(ctx context.Context) (ui.Watcher, error) {
		s, err := c.Watch(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
