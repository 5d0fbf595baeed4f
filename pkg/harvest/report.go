package harvest

import (
	"time"

	"pmcharvest/pkg/fetch"
	"pmcharvest/pkg/window"
)

// WindowState is how a window ended
type WindowState string

const (
	// WindowComplete means every result of the window was processed
	WindowComplete WindowState = "complete"
	// WindowEmpty means the window had no results
	WindowEmpty WindowState = "empty"
	// WindowAborted means counting or paging failed and the window must be revisited
	WindowAborted WindowState = "aborted"
)

// Tally counts per-document outcomes
type Tally struct {
	Downloaded int
	Skipped    int
	Failed     int
	// Unidentified counts records that carried no identifier
	Unidentified int
}

// Add records one fetch outcome
func (t *Tally) Add(s fetch.Status) {
	switch s {
	case fetch.Downloaded:
		t.Downloaded++
	case fetch.Skipped:
		t.Skipped++
	case fetch.Failed:
		t.Failed++
	}
}

// Merge adds o into t
func (t *Tally) Merge(o Tally) {
	t.Downloaded += o.Downloaded
	t.Skipped += o.Skipped
	t.Failed += o.Failed
	t.Unidentified += o.Unidentified
}

// WindowReport describes one visited window
type WindowReport struct {
	Window window.TimeWindow
	State  WindowState
	// Total is the result count reported by the provider
	Total int
	Tally Tally
	Err   error
}

// Summary is the outcome of a run
type Summary struct {
	Provider string
	Complete int
	Empty    int
	Aborted  int
	Tally    Tally
	Windows  []WindowReport
	Elapsed  time.Duration
}

func (s *Summary) add(r WindowReport) {
	switch r.State {
	case WindowComplete:
		s.Complete++
	case WindowEmpty:
		s.Empty++
	case WindowAborted:
		s.Aborted++
	}
	s.Tally.Merge(r.Tally)
	s.Windows = append(s.Windows, r)
}

// Observer follows a run's progress, typically to render it on a terminal
type Observer interface {
	Resuming(w window.TimeWindow, processed int)
	WindowStarted(w window.TimeWindow, total int)
	ItemProcessed(processed, total int, id string, status fetch.Status)
	WindowFinished(r WindowReport)
}

type nopObserver struct{}

func (nopObserver) Resuming(window.TimeWindow, int)              {}
func (nopObserver) WindowStarted(window.TimeWindow, int)         {}
func (nopObserver) ItemProcessed(int, int, string, fetch.Status) {}
func (nopObserver) WindowFinished(WindowReport)                  {}
