package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/transport"
	"github.com/muurk/greeac/internal/ui"
)

// errReported means the command already printed its failure.
var errReported = errors.New("failed")

// Control request flags, shared by encode, send and set
var (
	reqMode string
	reqFan  string
	reqTemp int
)

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&reqMode, "mode", "", "Mode (off, auto, cool, dry, fan_only, heat)")
	cmd.Flags().StringVar(&reqFan, "fan", "", "Fan speed (auto, low, medium, high)")
	cmd.Flags().IntVar(&reqTemp, "temp", 0, "Target temperature in °C (16-30)")
}

// requestFromFlags builds a control request from the flags that were set.
func requestFromFlags(cmd *cobra.Command) (protocol.Request, error) {
	var req protocol.Request
	if cmd.Flags().Changed("mode") {
		m, err := protocol.ParseMode(reqMode)
		if err != nil {
			return req, err
		}
		req.Mode = &m
	}
	if cmd.Flags().Changed("fan") {
		f, err := protocol.ParseFanSpeed(reqFan)
		if err != nil {
			return req, err
		}
		req.FanSpeed = &f
	}
	if cmd.Flags().Changed("temp") {
		if _, ok := protocol.EncodeTemperature(reqTemp); !ok {
			return req, fmt.Errorf("temperature %d outside %d..%d", reqTemp, protocol.MinValidTemperature, protocol.MaxValidTemperature)
		}
		t := reqTemp
		req.TargetTemperature = &t
	}
	return req, nil
}

// parseHexFrame accepts "7E7E00...", "7E 7E 00 ...", "7e:7e:..." or 0x-prefixed bytes.
func parseHexFrame(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-', ',':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

func formatHex(b []byte) string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(out, " ")
}

func frameHints(err error) []string {
	switch {
	case errors.Is(err, protocol.ErrFrameSize):
		return []string{fmt.Sprintf("Frames are exactly %d bytes", protocol.FrameSize)}
	case errors.Is(err, protocol.ErrSyncMismatch):
		return []string{"Frames start with 7E 7E", "A shifted capture usually means bytes were dropped"}
	case errors.Is(err, protocol.ErrNoiseFrame):
		return []string{"Byte 3 is 0x33, which the unit emits as line noise"}
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return []string{"Check the UART settings are 4800 8E1", "Use --write for frames sent to the unit"}
	}
	return nil
}

var decodeWrite bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode a captured UART frame",
	Long: `Decode a 50-byte frame captured on the UART.

By default the frame is read as a status frame from the unit (checksum at
byte 49). With --write it is read as a command frame sent to the unit
(checksum at byte 46).`,
	Example: `  greeac decode 7E7E00AF000000002320...
  greeac decode --write "7E 7E 00 00 00 00 00 AF 52 40 ..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeWrite, "write", false, "Treat the frame as a command frame")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame, err := parseHexFrame(strings.Join(args, ""))
	if err != nil {
		return err
	}

	kind := "status (unit to bridge)"
	if decodeWrite {
		kind = "command (bridge to unit)"
	}
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Frame decode", "greeac decode",
		ui.D("Kind", kind),
		ui.D("Length", fmt.Sprintf("%d bytes", len(frame))),
	)
	if len(frame) == protocol.FrameSize {
		p.PrintFrame("Bytes", frame, decodeWrite)
		p.Newline()
	}

	if decodeWrite {
		return decodeCommand(p, frame)
	}

	st, err := protocol.Decode(frame)
	if err != nil {
		p.PrintError("Frame rejected", err, frameHints(err)...)
		return errReported
	}

	details := []ui.Detail{
		ui.D("Mode", fmt.Sprintf("%s (0x%02X)", st.Mode, st.ModeRaw&protocol.ModeMask)),
		ui.D("Fan", fmt.Sprintf("%s (0x%02X)", st.FanSpeed, st.ModeRaw&protocol.FanMask)),
		ui.D("Target", fmt.Sprintf("%d°C (0x%02X)", st.TargetTemperature, st.TemperatureRaw)),
		ui.D("Indoor", fmt.Sprintf("%d°C", st.CurrentTemperature)),
	}
	if unknowns := st.Unknowns(); len(unknowns) > 0 {
		var msgs []string
		for _, u := range unknowns {
			msgs = append(msgs, u.Error())
		}
		details = append(details, ui.D("Unknown", strings.Join(msgs, "; ")))
		p.PrintWarning("Decoded with unknown values", details...)
		return nil
	}
	p.PrintSuccess("Decoded", details...)
	return nil
}

func decodeCommand(p *ui.Printer, frame []byte) error {
	if len(frame) != protocol.FrameSize {
		err := fmt.Errorf("%w: got %d bytes", protocol.ErrFrameSize, len(frame))
		p.PrintError("Frame rejected", err, frameHints(err)...)
		return errReported
	}
	if err := protocol.VerifyChecksum(frame[:protocol.OffsetChecksumWrite+1]); err != nil {
		p.PrintError("Frame rejected", err, "Command frames carry the checksum at byte 46")
		return errReported
	}

	c, err := protocol.CommandFrameFromBytes(frame)
	if err != nil {
		return err
	}
	p.PrintSuccess("Decoded command",
		ui.D("Mode", c.Mode().String()),
		ui.D("Fan", c.FanSpeed().String()),
		ui.D("Target", fmt.Sprintf("%d°C", c.TargetTemperature())),
		ui.D("Force update", fmt.Sprintf("%t", c.ForceUpdate())),
	)
	return nil
}

var (
	encodeBase  string
	encodeForce bool
	encodeRaw   bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a command frame",
	Long: `Merge a control request into a command frame and print it.

The frame starts empty, or from --base (a previously sent command frame).
Fields that are not given keep the base frame's values; dry mode always
sends low fan.`,
	Example: `  greeac encode --mode cool --fan low --temp 22
  greeac encode --base 7E7E... --temp 25 --force
  greeac encode --mode heat --raw`,
	RunE: runEncode,
}

func init() {
	addRequestFlags(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeBase, "base", "", "Start from this command frame (hex)")
	encodeCmd.Flags().BoolVar(&encodeForce, "force", false, "Set the force-update marker")
	encodeCmd.Flags().BoolVar(&encodeRaw, "raw", false, "Print only the hex bytes")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}

	frame := protocol.NewCommandFrame()
	if encodeBase != "" {
		base, err := parseHexFrame(encodeBase)
		if err != nil {
			return fmt.Errorf("--base: %w", err)
		}
		if frame, err = protocol.CommandFrameFromBytes(base); err != nil {
			return fmt.Errorf("--base: %w", err)
		}
	}

	frame.Merge(req)
	frame.SetForceUpdate(encodeForce)
	out := frame.Encode()

	if encodeRaw {
		fmt.Fprintln(cmd.OutOrStdout(), formatHex(out))
		return nil
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Frame encode", "greeac encode", ui.D("Request", req.String()))
	p.PrintFrame("Bytes", out, true)
	p.Newline()
	p.PrintSuccess("Encoded",
		ui.D("Mode", frame.Mode().String()),
		ui.D("Fan", frame.FanSpeed().String()),
		ui.D("Target", fmt.Sprintf("%d°C", frame.TargetTemperature())),
		ui.D("Hex", formatHex(out)),
	)
	return nil
}

var (
	sendPort string
	sendYes  bool
	sendWait time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one control request straight to the UART",
	Long: `Open the serial port, wait for the unit's status, merge the request into
it and send a forced command frame. The unit's reply is decoded and shown.

Do not run this while a bridge has the same port open.`,
	Example: `  greeac send --port /dev/ttyUSB0 --mode cool --temp 23
  greeac send --mode off --yes`,
	RunE: runSend,
}

func init() {
	addRequestFlags(sendCmd)
	sendCmd.Flags().StringVar(&sendPort, "port", "", "Serial port (default from config)")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "Do not ask for confirmation")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 3*time.Second, "How long to wait for status frames")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sendPort != "" {
		cfg.Serial.Port = sendPort
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if !sendYes && !ui.ConfirmSend(os.Stdin, cmd.OutOrStdout(), cfg.Serial.Port) {
		return nil
	}

	s, err := transport.Open(serialConfig(cfg.Serial))
	if err != nil {
		p.PrintError("Cannot open serial port", err,
			"List adapters with 'greeac ports'",
			"Check you are in the dialout group")
		return errReported
	}
	defer s.Close()

	ctrl := climate.NewController(s, climate.Options{})

	// Start from what the unit reports so unrelated fields are kept
	if !waitForFrame(ctrl, sendWait) {
		p.PrintWarning("No status frame before sending", ui.D("Waited", sendWait.String()))
	}

	requested, err := ctrl.Control(req)
	if err != nil {
		p.PrintError("Send failed", err)
		return errReported
	}
	p.PrintFrame("Command frame", ctrl.CommandFrame(), true)
	p.Newline()

	if !waitForFrame(ctrl, sendWait) {
		p.PrintWarning("Sent, but the unit did not answer",
			ui.D("Requested", requested.String()),
		)
		return nil
	}
	st := ctrl.State()
	p.PrintSuccess("Unit answered",
		ui.D("Mode", st.Mode.String()),
		ui.D("Fan", st.FanSpeed.String()),
		ui.D("Target", fmt.Sprintf("%d°C", st.TargetTemperature)),
		ui.D("Indoor", fmt.Sprintf("%d°C", st.CurrentTemperature)),
	)
	return nil
}

// waitForFrame polls until the controller consumes a valid status frame.
func waitForFrame(ctrl *climate.Controller, wait time.Duration) bool {
	before := ctrl.State().UpdatedAt
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if _, err := ctrl.Poll(); err != nil {
			return false
		}
		if st := ctrl.State(); st.UpdatedAt.After(before) {
			return true
		}
		time.Sleep(climate.DefaultPollInterval)
	}
	return false
}
