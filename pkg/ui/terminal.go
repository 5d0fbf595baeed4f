package ui

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Banner is printed at the start of a harvest
const Banner = `
  ┌─────────────────────────────────────────┐
  │  pmcharvest  ·  monthly PMC harvester   │
  └─────────────────────────────────────────┘
`

var colorEnabled atomic.Bool

func init() {
	colorEnabled.Store(true)
}

// SetColor turns ANSI colors on or off for all output helpers
func SetColor(enabled bool) {
	colorEnabled.Store(enabled)
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner with color
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		fmt.Fprintln(w, Red(msg+": "+err.Error()))
		return
	}
	fmt.Fprintln(w, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(w io.Writer, label string, value string) {
	fmt.Fprintf(w, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, Yellow(msg))
}
