// Package search defines the contract between the harvest engine and a remote
// bibliographic search service.
package search

import (
	"context"

	"pmcharvest/pkg/window"
)

// Style is how a provider paginates a window
type Style int

const (
	// Cursor providers return an opaque next-page token with every page
	Cursor Style = iota
	// Enumerate providers list every identifier of the window up front
	Enumerate
)

func (s Style) String() string {
	if s == Enumerate {
		return "enumerate"
	}
	return "cursor"
}

// Query is a provider specific search for one window
type Query struct {
	Window window.TimeWindow
	Term   string
	// Session carries server-side state established by Count
	Session map[string]string
}

// Record is one search hit
type Record struct {
	ID       string
	Title    string
	Abstract string
}

// HasText reports whether the record carries text to classify
func (r Record) HasText() bool {
	return r.Title != "" || r.Abstract != ""
}

// Page is one page of results and the cursor that follows it
type Page struct {
	Records []Record
	Next    string
}

// Provider is a paginated remote search service
type Provider interface {
	Name() string
	Style() Style
	// Begin is the cursor for the first page of a window
	Begin() string
	BuildQuery(w window.TimeWindow) Query
	// Count reports the number of hits and may return the query enriched with session state
	Count(ctx context.Context, q Query) (int, Query, error)
	Page(ctx context.Context, q Query, cursor string) (Page, error)
}

// DocumentSource retrieves the full document for an identifier
type DocumentSource interface {
	FetchDocument(ctx context.Context, id string) ([]byte, error)
}

// Done reports whether cursor pagination must stop after page was fetched with cursor.
// An empty page, an empty next cursor or a cursor that did not advance all end the window.
func Done(page Page, cursor string) bool {
	return len(page.Records) == 0 || Stalled(page, cursor)
}

// Stalled reports whether page offers no further cursor. Enumerating providers
// stop on this alone, since a batch can legitimately link to no documents.
func Stalled(page Page, cursor string) bool {
	return page.Next == "" || page.Next == cursor
}
