//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/ui"
)

// logEntry matches the JSON lines written by logging.LogFrame
type logEntry struct {
	Time    string `json:"T"`
	Message string `json:"M"`
	Hex     string `json:"hex"`
}

// offsetStats collects what one byte offset did across a capture
type offsetStats struct {
	values  map[byte]int
	changes int
	last    byte
	seen    bool
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze_frames <log-file> [--write]")
		fmt.Println("Example: analyze_frames greeac.log")
		fmt.Println()
		fmt.Println("Lists the byte offsets that change across the status frames of a")
		fmt.Println("capture. Flip one setting on the remote while capturing to find the")
		fmt.Println("byte that carries it. With --write the command frames are analysed.")
		os.Exit(1)
	}

	filename := os.Args[1]
	write := len(os.Args) > 2 && os.Args[2] == "--write"

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	want := "UART frame received"
	if write {
		want = "UART frame sent"
	}

	offsets := make([]offsetStats, protocol.FrameSize)
	for i := range offsets {
		offsets[i].values = make(map[byte]int)
	}

	frames := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e logEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil || e.Message != want {
			continue
		}
		frame, err := hex.DecodeString(strings.ReplaceAll(e.Hex, " ", ""))
		if err != nil || len(frame) != protocol.FrameSize {
			continue
		}
		frames++
		for i, b := range frame {
			o := &offsets[i]
			o.values[b]++
			if o.seen && o.last != b {
				o.changes++
			}
			o.last, o.seen = b, true
		}
	}

	fmt.Printf("=== Gree UART Frame Analyzer ===\n")
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Frames: %d (%s)\n\n", frames, want)
	if frames == 0 {
		fmt.Println("No frames found. Run the bridge with logging.level debug and logging.format json.")
		os.Exit(1)
	}

	fields := ui.FrameFields(write)

	fmt.Printf("%-6s %-16s %-8s %s\n", "Offset", "Field", "Changes", "Values (count)")
	fmt.Printf("%s\n", strings.Repeat("-", 72))
	constant := 0
	for i, o := range offsets {
		if len(o.values) == 1 {
			constant++
			continue
		}
		name := fields[i]
		if name == "" {
			name = "?"
		}
		fmt.Printf("[%02d]   %-16s %-8d %s\n", i, name, o.changes, formatValues(o.values))
	}
	fmt.Printf("\n%d of %d offsets never changed.\n", constant, protocol.FrameSize)
}

func formatValues(values map[byte]int) string {
	keys := make([]int, 0, len(values))
	for b := range values {
		keys = append(keys, int(b))
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for i, k := range keys {
		if i == 8 {
			parts = append(parts, fmt.Sprintf("... +%d more", len(keys)-i))
			break
		}
		parts = append(parts, fmt.Sprintf("%02X(%d)", k, values[byte(k)]))
	}
	return strings.Join(parts, " ")
}
