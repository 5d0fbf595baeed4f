// Package fetch retrieves single documents into the content store, skipping
// those already present.
package fetch

import (
	"context"
	"fmt"

	errs "pmcharvest/pkg/errors"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/search"
	"pmcharvest/pkg/storage"
)

// Status is the outcome of one fetch
type Status string

const (
	Downloaded Status = "downloaded"
	Skipped    Status = "skipped"
	Failed     Status = "failed"
)

// Result reports what happened to one document
type Result struct {
	Status Status
	Bytes  int
	Err    error
}

// Store is the subset of the content store a Fetcher needs
type Store interface {
	Exists(loc storage.Location) bool
	Put(loc storage.Location, body []byte) error
}

// Fetcher downloads documents that are not yet stored
type Fetcher struct {
	source  search.DocumentSource
	store   Store
	minSize int
	logger  logger.Logger
}

// New creates a Fetcher. Bodies must be strictly larger than minSize bytes.
func New(source search.DocumentSource, store Store, minSize int, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fetcher{source: source, store: store, minSize: minSize, logger: log}
}

// Fetch stores the document at loc unless it already exists.
// Network failures, short bodies and write errors all yield Failed; none is fatal.
func (f *Fetcher) Fetch(ctx context.Context, loc storage.Location) Result {
	if f.store.Exists(loc) {
		return Result{Status: Skipped}
	}

	body, err := f.source.FetchDocument(ctx, loc.ID)
	if err != nil {
		return f.fail(loc, fmt.Errorf("fetch %s: %w", loc.ID, err))
	}

	if len(body) <= f.minSize {
		return f.fail(loc, errs.New(errs.ErrorTypeContentTooShort, 200,
			"document %s is %d bytes, not above minimum %d", loc.ID, len(body), f.minSize))
	}

	if err := f.store.Put(loc, body); err != nil {
		return f.fail(loc, fmt.Errorf("store %s: %w", loc.ID, err))
	}

	return Result{Status: Downloaded, Bytes: len(body)}
}

func (f *Fetcher) fail(loc storage.Location, err error) Result {
	f.logger.WithError(err).WarnWithFields("document fetch failed", map[string]interface{}{
		"id":         loc.ID,
		"window":     loc.Window.String(),
		"error_type": string(errs.TypeOf(err)),
	})
	return Result{Status: Failed, Err: err}
}
