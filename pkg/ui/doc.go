// Package ui renders harvest progress on a terminal: colored message helpers
// and a Progress observer that keeps one rewritten line per window.
package ui
