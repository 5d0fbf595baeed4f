package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"pmcharvest/pkg/fetch"
	"pmcharvest/pkg/harvest"
	"pmcharvest/pkg/window"
)

// lineWidth pads the in-place progress line so a shorter update erases a longer one
const lineWidth = 65

// Progress renders a harvest as a single rewritten progress line per window
// followed by a one-line window summary.
type Progress struct {
	mu     sync.Mutex
	out    io.Writer
	quiet  bool
	inLine bool
}

// NewProgress creates a Progress writing to out. When quiet is set only the
// final summary is printed.
func NewProgress(out io.Writer, quiet bool) *Progress {
	return &Progress{out: out, quiet: quiet}
}

// Resuming announces where a run picks up
func (p *Progress) Resuming(w window.TimeWindow, processed int) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s, at %d\n", Cyan("Jump to ->"), Yellow(w.String()), processed)
}

// WindowStarted prints the window header
func (p *Progress) WindowStarted(w window.TimeWindow, total int) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.out, Magenta(fmt.Sprintf("--- %s | Total in month: %d ---", w, total)))
}

// ItemProcessed rewrites the progress line
func (p *Progress) ItemProcessed(processed, total int, id string, status fetch.Status) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	label := statusLabel(status)
	plain := fmt.Sprintf("Progress: %d/%d | %s: %s", processed, total, label, id)
	pad := ""
	if len(plain) < lineWidth {
		pad = strings.Repeat(" ", lineWidth-len(plain))
	}
	fmt.Fprintf(p.out, "\rProgress: %d/%d | %s: %s%s", processed, total, paintStatus(status, label), id, pad)
	p.inLine = true
}

// WindowFinished prints the window summary
func (p *Progress) WindowFinished(r harvest.WindowReport) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()

	switch r.State {
	case harvest.WindowEmpty:
		fmt.Fprintf(p.out, "%s %s: no results\n", Dim("[EMPTY]"), r.Window)
	case harvest.WindowAborted:
		msg := "aborted"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		fmt.Fprintf(p.out, "%s %s: %s\n", Red("[ABORTED]"), r.Window, msg)
	default:
		fmt.Fprintf(p.out, "%s %s: %s\n", Green("[COMPLETE]"), r.Window, formatTally(r.Tally))
	}
}

// Summary prints the run totals. It is shown even in quiet mode.
func (p *Progress) Summary(s harvest.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()

	fmt.Fprintln(p.out)
	if s.Aborted > 0 {
		fmt.Fprintln(p.out, Yellow(fmt.Sprintf("Finished with %d aborted window(s); rerun to revisit them.", s.Aborted)))
	} else {
		fmt.Fprintln(p.out, Green("All tasks completed."))
	}
	fmt.Fprintf(p.out, "%s: %d complete, %d empty, %d aborted\n", Cyan("Windows"), s.Complete, s.Empty, s.Aborted)
	fmt.Fprintf(p.out, "%s: %s\n", Cyan("Documents"), formatTally(s.Tally))
	if s.Elapsed > 0 {
		fmt.Fprintf(p.out, "%s: %s\n", Cyan("Elapsed"), s.Elapsed.Round(time.Second))
	}
}

func (p *Progress) endLine() {
	if p.inLine {
		fmt.Fprintln(p.out)
		p.inLine = false
	}
}

func statusLabel(s fetch.Status) string {
	switch s {
	case fetch.Downloaded:
		return "Downloaded"
	case fetch.Skipped:
		return "Skipped"
	case fetch.Failed:
		return "Failed"
	default:
		return "No ID"
	}
}

func paintStatus(s fetch.Status, label string) string {
	switch s {
	case fetch.Downloaded:
		return Green(label)
	case fetch.Failed:
		return Red(label)
	default:
		return Dim(label)
	}
}

func formatTally(t harvest.Tally) string {
	out := fmt.Sprintf("downloaded %d, skipped %d, failed %d", t.Downloaded, t.Skipped, t.Failed)
	if t.Unidentified > 0 {
		out += fmt.Sprintf(", without id %d", t.Unidentified)
	}
	return out
}
