package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Brand colors
var (
	Brand  = color.New(color.FgHiGreen, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// Mastery tier colors, keyed by tier name.
var tierColors = map[string]*color.Color{
	"strong":        color.New(color.FgHiGreen),
	"growing":       color.New(color.FgHiBlue),
	"at_risk":       color.New(color.FgHiYellow),
	"needs_support": color.New(color.FgHiRed),
}

const Graph = "\U0001F578" // 🕸

// Emoji toggles the banner glyph.
var Emoji = true

// Configure applies [ui] settings.
func Configure(colorEnabled, emoji bool) {
	if !colorEnabled {
		color.NoColor = true
	}
	Emoji = emoji
}

// Banner prints the kgraph banner.
func Banner(subtitle string) {
	FprintBanner(os.Stdout, subtitle)
}

// FprintBanner writes the kgraph banner to w.
func FprintBanner(w io.Writer, subtitle string) {
	if Emoji {
		fmt.Fprintf(w, "%s %s — %s\n\n", Graph, Brand.Sprint("kgraph"), subtitle)
		return
	}
	fmt.Fprintf(w, "%s — %s\n\n", Brand.Sprint("kgraph"), subtitle)
}

// Tier returns the color used for a mastery tier. Unknown tiers are subtle.
func Tier(name string) *color.Color {
	if c, ok := tierColors[name]; ok {
		return c
	}
	return Subtle
}

// Table prints a simple aligned table.
func Table(headers []string, rows [][]string) {
	FprintTable(os.Stdout, headers, rows)
}

// FprintTable writes a simple aligned table to w.
func FprintTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Print header
	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += fmt.Sprintf("%-*s  ", widths[i], h)
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Fprintln(w, strings.TrimRight(headerLine, " "))
	Subtle.Fprintln(w, strings.TrimRight(sepLine, " "))

	// Print rows
	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += fmt.Sprintf("%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// Bar renders a percentage as a fixed-width block bar in c.
func Bar(pct float64, width int, c *color.Color) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return "[" + c.Sprint(strings.Repeat("█", filled)) +
		Subtle.Sprint(strings.Repeat("░", width-filled)) + "]"
}

// Truncate shortens s to max runes, ending with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// WarnIcon returns a warning icon.
func WarnIcon() string {
	return Warn.Sprint("⚠")
}
