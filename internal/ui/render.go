package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Detail is one key/value line of a header or result box. Details render in
// the order given.
type Detail struct {
	Key   string
	Value string
}

// D is shorthand for building a Detail.
func D(key, value string) Detail {
	return Detail{Key: key, Value: value}
}

// Printer provides methods for printing UI components to a writer.
// CLI commands use it for all styled output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = clampWidth(width)
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Detail) {
	p.Println(RenderHeader(title, command, params, p.width))
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Detail) {
	p.Println(RenderResultBox(SuccessMarker+"  "+title, SuccessTitleStyle, SuccessColor, details, p.width))
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details ...Detail) {
	p.Println(RenderResultBox(WarningMarker+"  "+title, WarningTitleStyle, WarningColor, details, p.width))
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting ...string) {
	p.Println(RenderErrorBox(title, err, troubleshooting, p.width))
}

// PrintFrame prints an annotated dump of a UART frame.
func (p *Printer) PrintFrame(title string, frame []byte, write bool) {
	p.Println(HeaderParamKeyStyle.Render(title))
	p.Println(RenderFrame(frame, write))
}

// RenderHeader renders a command header box
func RenderHeader(title, command string, params []Detail, width int) string {
	width = clampWidth(width)

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(title)),
		HeaderCommandStyle.Render(command),
	)
	if len(params) == 0 {
		return HeaderBorderStyle(width).Render(top)
	}

	dividerWidth := width - 6 // Account for border and padding
	if dividerWidth < 10 {
		dividerWidth = 10
	}

	var lines []string
	for _, d := range params {
		lines = append(lines, HeaderParamKeyStyle.Render(d.Key+":")+" "+HeaderParamValueStyle.Render(d.Value))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		top,
		" "+RenderHorizontalDivider(dividerWidth, "─"),
		strings.Join(lines, "\n"),
	)
	return HeaderBorderStyle(width).Render(content)
}

// RenderResultBox renders a titled box of details.
func RenderResultBox(title string, titleStyle lipgloss.Style, border lipgloss.Color, details []Detail, width int) string {
	width = clampWidth(width)

	lines := []string{"", titleStyle.Render(title), ""}
	for _, d := range details {
		lines = append(lines, ResultKeyStyle.Render(d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(details) > 0 {
		lines = append(lines, "")
	}
	return ResultBoxStyle(width, border).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders an error result box with troubleshooting
func RenderErrorBox(title string, err error, troubleshooting []string, width int) string {
	width = clampWidth(width)

	lines := []string{"", ErrorTitleStyle.Render(FailureMarker + "  " + title), ""}
	if err != nil {
		lines = append(lines, ErrorMessageStyle.Width(width-8).Render("Error: "+err.Error()), "")
	}

	if len(troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:")}
		for _, tip := range troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("• "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(width).Render(strings.Join(tips, "\n")), "")
	}

	return ResultBoxStyle(width, ErrorColor).Render(strings.Join(lines, "\n"))
}
