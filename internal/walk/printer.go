package walk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/babelcloud/navwalk/internal/browserapi"
)

const (
	bannerWidth = 58
	ruleWidth   = 60
)

// Printer renders walkthrough progress for humans.
type Printer struct {
	out    io.Writer
	green  *color.Color
	cyan   *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// NewPrinter writes to out; a nil out discards everything
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{
		out:    out,
		green:  color.New(color.FgGreen),
		cyan:   color.New(color.FgCyan),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
}

// Banner prints a boxed title
func (p *Printer) Banner(title string) {
	fmt.Fprintln(p.out, "╔"+strings.Repeat("═", bannerWidth)+"╗")
	fmt.Fprintln(p.out, "║"+center(title, bannerWidth)+"║")
	fmt.Fprintln(p.out, "╚"+strings.Repeat("═", bannerWidth)+"╝")
}

// Step prints the header of step n
func (p *Printer) Step(n int, description string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(p.out, "\n%s\n", rule)
	p.bold.Fprintf(p.out, "📌 Step %d: %s\n", n, description)
	fmt.Fprintf(p.out, "%s\n\n", rule)
}

// Request prints the request line
func (p *Printer) Request(method, url string) {
	fmt.Fprintf(p.out, "%s %s\n", formatMethod(method), url)
}

// Response prints the status and body of resp. JSON bodies are indented,
// anything else is printed as raw text.
func (p *Printer) Response(title string, resp *browserapi.Response) {
	if resp == nil {
		return
	}
	if resp.Success() {
		p.green.Fprintf(p.out, "✅ %s\n", title)
	} else {
		p.yellow.Fprintf(p.out, "⚠️  %s\n", title)
	}
	fmt.Fprintf(p.out, "Status code: %d\n", resp.StatusCode)

	if resp.IsJSON() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace(resp.Body), "", "  "); err == nil {
			fmt.Fprintf(p.out, "Response data: %s\n", buf.String())
			return
		}
	}
	fmt.Fprintf(p.out, "Response content: %s\n", string(resp.Body))
}

// Binary prints the summary of a response whose body is not text
func (p *Printer) Binary(title string, resp *browserapi.Response) {
	if resp == nil {
		return
	}
	p.green.Fprintf(p.out, "✅ %s\n", title)
	fmt.Fprintf(p.out, "Status code: %d\n", resp.StatusCode)
	fmt.Fprintf(p.out, "Image size: %d bytes\n", len(resp.Body))
}

// Value prints a single extracted value
func (p *Printer) Value(icon, label, value string) {
	fmt.Fprintf(p.out, "%s %s: %s\n", icon, label, value)
}

// Warn prints a non fatal note
func (p *Printer) Warn(format string, args ...interface{}) {
	p.yellow.Fprintf(p.out, "⚠️  "+format+"\n", args...)
}

// Failure prints a terminal error with an optional hint line
func (p *Printer) Failure(msg string, hint string) {
	p.red.Fprintf(p.out, "\n❌ %s\n", msg)
	if hint != "" {
		fmt.Fprintln(p.out, hint)
	}
}

// Done prints the closing banner
func (p *Printer) Done() {
	fmt.Fprintln(p.out)
	p.Banner("Walkthrough complete ✅")
	fmt.Fprintln(p.out)
}

func formatMethod(method string) string {
	switch method {
	case "GET":
		return color.New(color.Bold, color.FgGreen).Sprint(method)
	case "POST":
		return color.New(color.Bold, color.FgYellow).Sprint(method)
	default:
		return color.New(color.Bold).Sprint(method)
	}
}

// center pads s to width display cells, counting runes
func center(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}
