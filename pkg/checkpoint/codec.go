package checkpoint

import (
	"fmt"
	"strconv"
	"strings"

	"pmcharvest/pkg/window"
)

// Codec converts a checkpoint to and from its one-line file form
type Codec interface {
	Encode(c *Checkpoint) string
	Decode(line string) (*Checkpoint, error)
}

// PipeCodec stores cursor-style progress as year|month|processed|cursor.
// A finished window is written as the start of the following one.
type PipeCodec struct {
	// Begin is the cursor that starts a fresh window
	Begin string
}

// Encode renders c
func (p PipeCodec) Encode(c *Checkpoint) string {
	if c.Done {
		next := c.Window.Next()
		return fmt.Sprintf("%d|%d|0|%s", next.Year, next.Month, p.Begin)
	}
	return fmt.Sprintf("%d|%d|%d|%s", c.Window.Year, c.Window.Month, c.Processed, c.Marker)
}

// Decode parses a line written by Encode
func (p PipeCodec) Decode(line string) (*Checkpoint, error) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 pipe-separated fields, got %d", len(parts))
	}

	w, err := parseWindow(parts[0], parts[1])
	if err != nil {
		return nil, err
	}
	processed, err := strconv.Atoi(parts[2])
	if err != nil || processed < 0 {
		return nil, fmt.Errorf("invalid processed count %q", parts[2])
	}
	if parts[3] == "" {
		return nil, fmt.Errorf("empty cursor")
	}

	return &Checkpoint{Window: w, Processed: processed, Marker: parts[3]}, nil
}

// DoneMarker is the identifier slot value of a finished window
const DoneMarker = "DONE"

// CommaCodec stores enumerate-style progress as year,month,lastID
// or year,month,DONE. The processed count is not persisted.
type CommaCodec struct{}

// Encode renders c
func (CommaCodec) Encode(c *Checkpoint) string {
	marker := c.Marker
	if c.Done {
		marker = DoneMarker
	}
	return fmt.Sprintf("%d,%d,%s", c.Window.Year, c.Window.Month, marker)
}

// Decode parses a line written by Encode
func (CommaCodec) Decode(line string) (*Checkpoint, error) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 comma-separated fields, got %d", len(parts))
	}

	w, err := parseWindow(parts[0], parts[1])
	if err != nil {
		return nil, err
	}

	cp := &Checkpoint{Window: w, Marker: strings.TrimSpace(parts[2])}
	if cp.Marker == DoneMarker {
		cp.Marker = ""
		cp.Done = true
	}
	return cp, nil
}

func parseWindow(year, month string) (window.TimeWindow, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return window.TimeWindow{}, fmt.Errorf("invalid year %q", year)
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return window.TimeWindow{}, fmt.Errorf("invalid month %q", month)
	}
	w := window.New(y, m)
	if !w.Valid() {
		return window.TimeWindow{}, fmt.Errorf("month %d out of range", m)
	}
	return w, nil
}
