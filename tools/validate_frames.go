//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/greeac/internal/protocol"
)

// LogEntry is one line of a bridge log written with logging.format: json
// and level debug. Frames are logged under "UART frame received/sent".
type LogEntry struct {
	Time    string `json:"T"`
	Message string `json:"M"`
	Length  int    `json:"length"`
	Hex     string `json:"hex"`
}

// Statistics tracks decoding results
type Statistics struct {
	TotalFrames   int
	TotalFiles    int
	StatusOK      int
	CommandOK     int
	Failures      map[string]int
	FailedFrames  []FailedFrame
	Modes         map[protocol.Mode]int
	FanSpeeds     map[protocol.FanSpeed]int
	UnknownValues int
}

// FailedFrame stores information about a frame that did not decode
type FailedFrame struct {
	File       string
	LineNumber int
	Hex        string
	Error      string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_frames <directory-or-file>")
		fmt.Println("Example: validate_frames /var/log/greeac/")
		fmt.Println("         validate_frames greeac.log")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		Failures:  make(map[string]int),
		Modes:     make(map[protocol.Mode]int),
		FanSpeeds: make(map[protocol.FanSpeed]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.log"))
		if err != nil {
			fmt.Printf("Error finding log files: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No .log files found in %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== Gree UART Frame Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if len(stats.FailedFrames) > 0 {
		os.Exit(2)
	}
}

// frameLine extracts the frame from a log line. Plain hex lines are read
// as status frames so captures from a logic analyser work too.
func frameLine(line string) (hexText string, command bool, ok bool) {
	if strings.HasPrefix(line, "{") {
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil || e.Hex == "" {
			return "", false, false
		}
		switch e.Message {
		case "UART frame received", "Simulator sent":
			return e.Hex, false, true
		case "UART frame sent", "Simulator received":
			return e.Hex, true, true
		}
		return "", false, false
	}
	return line, false, true
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		hexText, command, ok := frameLine(line)
		if !ok {
			continue
		}
		stats.TotalFrames++

		frame, err := hex.DecodeString(strings.ReplaceAll(hexText, " ", ""))
		if err == nil {
			if command {
				err = validateCommand(frame, stats)
			} else {
				err = validateStatus(frame, stats)
			}
		}
		if err != nil {
			stats.Failures[failureKind(err)]++
			stats.FailedFrames = append(stats.FailedFrames, FailedFrame{
				File:       filename,
				LineNumber: lineNum,
				Hex:        hexText,
				Error:      err.Error(),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error scanning %s: %v\n", filename, err)
	}
}

func validateStatus(frame []byte, stats *Statistics) error {
	st, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	stats.StatusOK++
	stats.Modes[st.Mode]++
	stats.FanSpeeds[st.FanSpeed]++
	stats.UnknownValues += len(st.Unknowns())
	return nil
}

func validateCommand(frame []byte, stats *Statistics) error {
	if len(frame) != protocol.FrameSize {
		return fmt.Errorf("%w: got %d bytes", protocol.ErrFrameSize, len(frame))
	}
	if err := protocol.VerifyChecksum(frame[:protocol.OffsetChecksumWrite+1]); err != nil {
		return err
	}
	stats.CommandOK++
	return nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrFrameSize):
		return "size"
	case errors.Is(err, protocol.ErrSyncMismatch):
		return "sync"
	case errors.Is(err, protocol.ErrNoiseFrame):
		return "noise"
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, hex.ErrLength), errors.As(err, new(hex.InvalidByteError)):
		return "hex"
	}
	return "other"
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Total Frames:       %d\n", stats.TotalFrames)
	fmt.Printf("Status Frames OK:   %d (%.2f%%)\n", stats.StatusOK, percent(stats.StatusOK, stats.TotalFrames))
	fmt.Printf("Command Frames OK:  %d (%.2f%%)\n", stats.CommandOK, percent(stats.CommandOK, stats.TotalFrames))
	fmt.Printf("Rejected:           %d (%.2f%%)\n", len(stats.FailedFrames), percent(len(stats.FailedFrames), stats.TotalFrames))
	fmt.Printf("Unknown Values:     %d\n", stats.UnknownValues)

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("MODE DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for _, m := range append(protocol.Modes(), protocol.ModeUnknown) {
		if n := stats.Modes[m]; n > 0 {
			fmt.Printf("%-10s %d (%.2f%%)\n", m, n, percent(n, stats.StatusOK))
		}
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("FAN SPEED DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for _, f := range append(protocol.FanSpeeds(), protocol.FanSpeedUnknown) {
		if n := stats.FanSpeeds[f]; n > 0 {
			fmt.Printf("%-10s %d (%.2f%%)\n", f, n, percent(n, stats.StatusOK))
		}
	}

	if len(stats.Failures) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("REJECTIONS BY KIND\n")
		fmt.Printf("----------------------------------------\n")
		kinds := make([]string, 0, len(stats.Failures))
		for k := range stats.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("%-10s %d\n", k, stats.Failures[k])
		}

		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("REJECTED FRAMES (%d total)\n", len(stats.FailedFrames))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.FailedFrames) > maxShow {
			fmt.Printf("(Showing first %d of %d)\n", maxShow, len(stats.FailedFrames))
		}
		for i, failed := range stats.FailedFrames {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nRejected #%d:\n", i+1)
			fmt.Printf("  File: %s (line %d)\n", failed.File, failed.LineNumber)
			fmt.Printf("  Error: %s\n", failed.Error)
			preview := failed.Hex
			if len(preview) > 80 {
				preview = preview[:80] + "..."
			}
			fmt.Printf("  Frame: %s\n", preview)
		}
	}

	fmt.Printf("\n========================================\n")
	if len(stats.FailedFrames) == 0 {
		fmt.Printf("✅ SUCCESS: All frames decoded\n")
	} else {
		fmt.Printf("⚠️  ISSUES FOUND: %d frames rejected\n", len(stats.FailedFrames))
	}
	fmt.Printf("========================================\n")
}
